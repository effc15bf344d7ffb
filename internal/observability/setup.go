package observability

import (
	"context"
	"net/http"

	"github.com/honeynil/SureSend/internal/config"
	"github.com/honeynil/SureSend/internal/infrastructure/observability"
)

// Setup wires logging, metrics and tracing for the process and returns the
// tracer shutdown hook together with the /metrics handler.
func Setup(ctx context.Context, cfg *config.Config) (func(context.Context) error, http.Handler, error) {
	observability.InitLogger(cfg.LogLevel)
	observability.InitMetrics()
	shutdown, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, err
	}
	return shutdown, observability.MetricsHandler(), nil
}
