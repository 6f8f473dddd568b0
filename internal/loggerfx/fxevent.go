package loggerfx

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/fx/fxevent"
)

// FxLogger reports fx lifecycle events through logrus: failures as errors,
// everything else at debug level.
type FxLogger struct {
	Logger logrus.FieldLogger
}

func (l *FxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.Provided:
		if e.Err != nil {
			l.Logger.WithError(e.Err).WithField("constructor", e.ConstructorName).Error("Unable to provide")
			return
		}
		l.Logger.WithField("constructor", e.ConstructorName).Debug("Provided")
	case *fxevent.Invoked:
		if e.Err != nil {
			l.Logger.WithError(e.Err).WithField("function", e.FunctionName).Error("Invoke failed")
		}
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			l.Logger.WithError(e.Err).WithField("callee", e.FunctionName).Error("OnStart hook failed")
		}
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			l.Logger.WithError(e.Err).WithField("callee", e.FunctionName).Error("OnStop hook failed")
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.Logger.WithError(e.Err).Error("Start failed")
			return
		}
		l.Logger.Debug("Started")
	case *fxevent.Stopped:
		if e.Err != nil {
			l.Logger.WithError(e.Err).Error("Stop failed")
		}
	case *fxevent.RolledBack:
		l.Logger.WithError(e.Err).Error("Start failed, rolled back")
	}
}
