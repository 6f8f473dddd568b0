package loggerfx

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ConfigRunLogMaxSize    = "log.run.max_size"
	ConfigRunLogMaxBackups = "log.run.max_backups"
)

type RunLogConfig struct {
	// megabytes
	MaxSize    int
	MaxBackups int
}

func RunLogConfigProvider(v *viper.Viper) *RunLogConfig {
	config := &RunLogConfig{
		MaxSize:    v.GetInt(ConfigRunLogMaxSize),
		MaxBackups: v.GetInt(ConfigRunLogMaxBackups),
	}

	if config.MaxSize <= 0 {
		config.MaxSize = 50
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 3
	}

	return config
}

type fileHook struct {
	writer    io.WriteCloser
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	b, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	_, err = h.writer.Write(b)
	return err
}

// RunLog mirrors every entry of the application logger into a per-run
// log file while a run is in progress.
type RunLog struct {
	logger *logrus.Logger
	config *RunLogConfig

	mu   sync.Mutex
	hook *fileHook
}

func NewRunLog(logger *logrus.Logger, config *RunLogConfig) *RunLog {
	return &RunLog{
		logger: logger,
		config: config,
	}
}

func (l *RunLog) Attach(path string) error {
	l.Detach()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "unable to create log directory for %s", path)
	}

	hook := &fileHook{
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    l.config.MaxSize,
			MaxBackups: l.config.MaxBackups,
		},
		formatter: &logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		},
	}

	l.mu.Lock()
	l.hook = hook
	l.mu.Unlock()

	l.logger.AddHook(hook)

	return nil
}

func (l *RunLog) Detach() {
	l.mu.Lock()
	hook := l.hook
	l.hook = nil
	l.mu.Unlock()

	if hook == nil {
		return
	}

	hooks := make(logrus.LevelHooks)
	for level, hh := range l.logger.Hooks {
		for _, h := range hh {
			if h != logrus.Hook(hook) {
				hooks[level] = append(hooks[level], h)
			}
		}
	}
	l.logger.ReplaceHooks(hooks)

	if err := hook.writer.Close(); err != nil {
		l.logger.WithError(err).Warn("Unable to close run log")
	}
}
