package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/config"
)

// NewRouter wires the match API. ws serves match snapshots over websocket at /ws.
func NewRouter(
	logger *slog.Logger,
	matches matchUseCase,
	results resultsRepo,
	providers ProviderFactory,
	defaults config.Players,
	ws http.Handler,
) http.Handler {
	h := &handlers{
		logger:    logger.With("component", "rest"),
		matches:   matches,
		results:   results,
		providers: providers,
		defaults:  defaults,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/ping", pingHandler)
	r.Handle("/ws", ws)

	r.Route("/matches", func(r chi.Router) {
		r.Post("/", h.startMatch)
		r.Get("/", h.listMatches)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getMatch)
			r.Get("/log", h.getLog)
			r.Post("/stop", h.stopMatch)
			r.Post("/resume", h.resumeMatch)
		})
	})

	r.Get("/results", h.listResults)
	r.Get("/standings", h.standings)

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Debug("request served",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
