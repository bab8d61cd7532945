package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Get returns the process-wide logger, building it on first use. APP_ENV=development
// switches to the human readable console encoder.
func Get() *zap.SugaredLogger {
	once.Do(func() {
		var (
			l   *zap.Logger
			err error
		)
		if os.Getenv("APP_ENV") == "development" {
			l, err = zap.NewDevelopment()
		} else {
			l, err = zap.NewProduction()
		}
		if err != nil {
			l = zap.NewNop()
		}
		sugar = l.Sugar()
	})
	return sugar
}

// Set replaces the process-wide logger. Tests use it with zap.NewNop or an
// observer core.
func Set(l *zap.Logger) {
	once.Do(func() {})
	sugar = l.Sugar()
}

func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
