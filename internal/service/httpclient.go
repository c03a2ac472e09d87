package service

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/quecocinohoy/backend/internal/logger"
)

// retryLogger adapts our logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	log *logger.Logger
}

func (r retryLogger) Error(msg string, keysAndValues ...interface{}) {
	r.log.Errorw(msg, keysAndValues...)
}

func (r retryLogger) Info(msg string, keysAndValues ...interface{}) {
	r.log.Debugw(msg, keysAndValues...)
}

func (r retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.log.Debugw(msg, keysAndValues...)
}

func (r retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.log.Warnw(msg, keysAndValues...)
}

// newRetryableClient retries connection errors, 429 and 5xx responses.
func newRetryableClient(timeout time.Duration, retries int, log *logger.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 4 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = retryLogger{log: log}
	return client
}
