package metricsfx

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/yurykabanov/archivist/internal/loggerfx"
	"github.com/yurykabanov/archivist/internal/sqlfx"
	"github.com/yurykabanov/archivist/pkg/domain"
	"github.com/yurykabanov/archivist/pkg/storage"
)

func TestModule_ServesRunMetrics(t *testing.T) {
	v := viper.New()
	v.Set(ConfigServerAddress, "127.0.0.1:0")
	v.Set(sqlfx.ConfigHistoryDSN, filepath.Join(t.TempDir(), "history.db"))

	var (
		repo     *storage.RunRepository
		listener net.Listener
	)

	app := fx.New(
		fx.NopLogger,
		fx.Supply(v),
		loggerfx.Module,
		sqlfx.Module,
		Module,
		fx.Populate(&repo, &listener),
	)
	require.NoError(t, app.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, app.Start(ctx))
	defer app.Stop(ctx)

	result := domain.NewResult("run-1", false, time.Now())
	result.Status = domain.StatusSuccess
	result.FinishedAt = result.StartedAt.Add(time.Second)
	require.NoError(t, repo.Record(ctx, domain.Job{BaseName: "site"}, result))

	resp, err := http.Get("http://" + listener.Addr().String() + "/metrics/runs")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "site", body[0]["base_name"])
}

func TestModule_NoAddressNoServer(t *testing.T) {
	var listener net.Listener

	app := fx.New(
		fx.NopLogger,
		fx.Supply(viper.New()),
		loggerfx.Module,
		sqlfx.Module,
		Module,
		fx.Populate(&listener),
	)

	require.NoError(t, app.Err())
	assert.Nil(t, listener)
}
