package rest

import (
	"context"
	"net/http"
	"time"

	"property-sync-service/internal/core/domain"
	core_port "property-sync-service/internal/core/port"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type Server struct {
	httpServer *http.Server
	logger     core_port.LoggerPort
}

// Handlers - все обработчики сервера; редакторы подключаются по своим префиксам
type Handlers struct {
	Editors     map[domain.Editor]*EditHandler
	Records     *RecordHandler
	Propagation *PropagationHandler
	Rates       *RatesHandler
}

func NewServer(port string, allowedOrigins []string, handlers Handlers, baseLogger core_port.LoggerPort) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           NewRouter(allowedOrigins, handlers, baseLogger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: baseLogger,
	}
}

// NewRouter вынесен отдельно, чтобы тесты гоняли запросы через httptest без сокета
func NewRouter(allowedOrigins []string, handlers Handlers, baseLogger core_port.LoggerPort) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware(baseLogger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", headerTraceID, headerActorID, headerActorName},
		ExposedHeaders: []string{headerTraceID},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rates", handlers.Rates.GetRates)

		r.Get("/records/{recordID}", handlers.Records.GetRecord)
		r.Get("/records/{recordID}/audit", handlers.Records.GetAuditLog)

		for editor, h := range handlers.Editors {
			r.Route("/"+string(editor), func(r chi.Router) {
				r.Post("/records/{recordID}/preview-price", h.PreviewPrice)
				r.Post("/records/{recordID}/validate", h.Validate)
				r.With(ActorMiddleware).Put("/records/{recordID}", h.Save)

				if editor == domain.EditorAdmin && handlers.Propagation != nil {
					r.With(ActorMiddleware).Post("/projects/{projectID}/propagate", handlers.Propagation.Propagate)
				}
			})
		}
	})

	return r
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST server", core_port.Fields{"address": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST server...", nil)
	return s.httpServer.Shutdown(ctx)
}
