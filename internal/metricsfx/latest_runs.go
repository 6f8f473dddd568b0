package metricsfx

import (
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/http/handler"
	"github.com/yurykabanov/archivist/pkg/storage"
)

// LatestRunMetricHandler is nil when run history is disabled.
func LatestRunMetricHandler(
	logger *logrus.Logger,
	repository *storage.RunRepository,
) *handler.RunMetricHandler {
	if repository == nil {
		return nil
	}
	return handler.NewRunMetricHandler(logger, repository)
}

func RegisterLatestRunMetricHandler(logger *logrus.Logger, router *mux.Router, h *handler.RunMetricHandler) {
	if h == nil {
		logger.Warn("Run history is disabled, /metrics/runs is not served")
		return
	}

	router.Handle("/metrics/runs", h).Methods("GET")
}
