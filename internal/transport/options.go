package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lestrrat-go/option"
	"github.com/whookdev/composer/internal/metrics"
)

type Option = option.Interface

type identTimeout struct{}

func (identTimeout) String() string { return "WithTimeout" }

type identTransport struct{}

func (identTransport) String() string { return "WithTransport" }

type identLogger struct{}

func (identLogger) String() string { return "WithLogger" }

type identMetrics struct{}

func (identMetrics) String() string { return "WithMetrics" }

// WithTimeout bounds the whole call, reading the body included.
func WithTimeout(d time.Duration) Option {
	return option.New(identTimeout{}, d)
}

// WithTransport sets the underlying RoundTripper.
func WithTransport(rt http.RoundTripper) Option {
	return option.New(identTransport{}, rt)
}

func WithLogger(logger *slog.Logger) Option {
	return option.New(identLogger{}, logger)
}

func WithMetrics(m *metrics.Metrics) Option {
	return option.New(identMetrics{}, m)
}
