package handler

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yurykabanov/archivist/pkg/storage"
)

type repoMock struct {
	mock.Mock
}

func (m *repoMock) FindLastSuccessful(ctx context.Context) ([]storage.Run, error) {
	args := m.Called(ctx)
	runs, _ := args.Get(0).([]storage.Run)
	return runs, args.Error(1)
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func TestRunMetricHandler_ServeHTTP(t *testing.T) {
	started := time.Date(2026, 5, 4, 3, 0, 0, 0, time.UTC)

	repo := &repoMock{}
	repo.On("FindLastSuccessful", mock.Anything).Return([]storage.Run{
		{
			BaseName:      "site",
			RunId:         "run-1",
			TotalSize:     2048,
			ArtifactCount: 3,
			StartedAt:     started,
			FinishedAt:    started.Add(1500 * time.Millisecond),
		},
	}, nil)

	h := NewRunMetricHandler(discardLogger(), repo)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)

	assert.Equal(t, "site", body[0]["base_name"])
	assert.Equal(t, "run-1", body[0]["run_id"])
	assert.EqualValues(t, 2048, body[0]["archive_size"])
	assert.EqualValues(t, 3, body[0]["artifacts"])
	assert.EqualValues(t, started.UnixNano()/1e6, body[0]["last_successful_at_mtime"])
	assert.EqualValues(t, 1500, body[0]["last_completion_mtime"])

	repo.AssertExpectations(t)
}

func TestRunMetricHandler_Empty(t *testing.T) {
	repo := &repoMock{}
	repo.On("FindLastSuccessful", mock.Anything).Return(nil, nil)

	rec := httptest.NewRecorder()
	NewRunMetricHandler(discardLogger(), repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/runs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRunMetricHandler_RepositoryError(t *testing.T) {
	repo := &repoMock{}
	repo.On("FindLastSuccessful", mock.Anything).Return(nil, errors.New("database is locked"))

	rec := httptest.NewRecorder()
	NewRunMetricHandler(discardLogger(), repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/runs", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
