package httpapi

import (
	"net/http"

	"github.com/proofofputt/putt-api/internal/platform/logging"
)

type RouterConfig struct {
	CORSAllowedOrigins []string
	CronSecret         string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// TraceBodyMaxBytes > 0 records request bodies on spans.
	TraceBodyMaxBytes int
}

func NewRouter(handler *Handler, verifier TokenVerifier, logger *logging.Logger, cfg RouterConfig) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler, cfg.Metrics)
	registerPublicRoutes(mux, handler, verifier)
	registerAuthorizedRoutes(mux, handler, verifier)
	registerInternalRoutes(mux, handler, cfg.CronSecret)

	chain := RequestLogging(logger, CORS(cfg.CORSAllowedOrigins, recoverPanic(logger, mux)))
	return RequestTracing(CaptureRequestBody(cfg.TraceBodyMaxBytes, chain))
}
