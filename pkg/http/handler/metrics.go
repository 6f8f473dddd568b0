package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/archivist/pkg/appcontext"
	"github.com/yurykabanov/archivist/pkg/storage"
)

type RunRepository interface {
	FindLastSuccessful(context.Context) ([]storage.Run, error)
}

type RunMetricHandler struct {
	logger logrus.FieldLogger
	repo   RunRepository
}

func NewRunMetricHandler(logger logrus.FieldLogger, repo RunRepository) *RunMetricHandler {
	return &RunMetricHandler{
		logger: logger,
		repo:   repo,
	}
}

type runMetricResponse struct {
	BaseName         string `json:"base_name"`
	RunId            string `json:"run_id"`
	ArchiveSize      int64  `json:"archive_size"`
	Artifacts        int    `json:"artifacts"`
	LastSuccessfulAt int64  `json:"last_successful_at_mtime"`
	LastCompletion   int64  `json:"last_completion_mtime"`
}

func (h *RunMetricHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logger := appcontext.LoggerFromContext(h.logger, ctx)

	runs, err := h.repo.FindLastSuccessful(ctx)
	if err != nil {
		logger.WithError(err).Error("Unable to query last successful runs")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	result := make([]runMetricResponse, 0, len(runs))

	for _, run := range runs {
		result = append(result, runMetricResponse{
			BaseName:         run.BaseName,
			RunId:            run.RunId,
			ArchiveSize:      run.TotalSize,
			Artifacts:        run.ArtifactCount,
			LastSuccessfulAt: run.StartedAt.UnixNano() / 1e6,
			LastCompletion:   run.Duration().Nanoseconds() / 1e6,
		})
	}

	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	err = enc.Encode(result)
	if err != nil {
		logger.WithError(err).Error("Unable to encode response")
	}
}
