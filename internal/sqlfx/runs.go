package sqlfx

import (
	"github.com/jmoiron/sqlx"

	"github.com/yurykabanov/archivist/pkg/storage"
)

// RunsRepository is nil when history is disabled.
func RunsRepository(db *sqlx.DB) *storage.RunRepository {
	if db == nil {
		return nil
	}

	return storage.NewRunRepository(db)
}
