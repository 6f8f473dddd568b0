package appcontext

import (
	"context"

	"github.com/sirupsen/logrus"
)

type contextId int

const (
	runIdKeyId contextId = iota
	stageKeyId
	artifactKeyId
	pluginKeyId
	requestIdKeyId
	attemptKeyId
)

func WithRunId(ctx context.Context, runId string) context.Context {
	return context.WithValue(ctx, runIdKeyId, runId)
}

func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKeyId, stage)
}

func WithArtifact(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, artifactKeyId, path)
}

func WithPlugin(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, pluginKeyId, name)
}

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKeyId, requestId)
}

func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKeyId, attempt)
}

func RunIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIdKeyId).(string)
	return id
}

func LoggerFromContext(logger logrus.FieldLogger, ctx context.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}

	result := logger

	if ctxRunId, ok := ctx.Value(runIdKeyId).(string); ok && ctxRunId != "" {
		result = result.WithField("run_id", ctxRunId)
	}

	if ctxStage, ok := ctx.Value(stageKeyId).(string); ok && ctxStage != "" {
		result = result.WithField("stage", ctxStage)
	}

	if ctxArtifact, ok := ctx.Value(artifactKeyId).(string); ok && ctxArtifact != "" {
		result = result.WithField("artifact", ctxArtifact)
	}

	if ctxPlugin, ok := ctx.Value(pluginKeyId).(string); ok && ctxPlugin != "" {
		result = result.WithField("plugin", ctxPlugin)
	}

	if ctxAttempt, ok := ctx.Value(attemptKeyId).(int); ok && ctxAttempt > 0 {
		result = result.WithField("attempt", ctxAttempt)
	}

	if ctxRequestId, ok := ctx.Value(requestIdKeyId).(string); ok && ctxRequestId != "" {
		result = result.WithField("request_id", ctxRequestId)
	}

	return result
}
