package partner

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	defaultRetryMax     = 2
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
)

// NewHTTPClient returns the retrying transport used for partner calls.
// Connection errors and 5xx responses are retried up to retryMax times, except
// for requests whose context went through withoutRetry. When retries run out
// the last response is handed back so its body can be decoded.
func NewHTTPClient(retryMax int, logger zerolog.Logger) *retryablehttp.Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = retryMax
	httpClient.RetryWaitMin = defaultRetryWaitMin
	httpClient.RetryWaitMax = defaultRetryWaitMax
	httpClient.CheckRetry = checkRetry
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient.Logger = leveledLogger{log: logger}
	return httpClient
}

type noRetryKey struct{}

// withoutRetry marks a request as single shot: a 5xx or a dropped connection
// is returned, never resent.
func withoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if noRetry, _ := ctx.Value(noRetryKey{}).(bool); noRetry {
		return false, ctx.Err()
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger. Nothing is
// logged above debug; failures reach the caller as errors.
type leveledLogger struct {
	log zerolog.Logger
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Trace().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}
