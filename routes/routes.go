package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Sayat07/hacklive-system/handlers"
	"github.com/Sayat07/hacklive-system/middleware"
	"github.com/Sayat07/hacklive-system/models"
)

// SetupRoutes собирает все маршруты движка трансляции.
// Публичные ручки отдают состояние и результаты, запись голосов требует
// аутентификации, команды трансляции и веса доступны только админу.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	registry *prometheus.Registry,
	broadcastHandler *handlers.BroadcastHandler,
	voteHandler *handlers.VoteHandler,
	resultsHandler *handlers.ResultsHandler,
	weightsHandler *handlers.WeightsHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"available"}`))
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Get("/ws/events/{slug}", webSocketHandler.ServeWs)

	router.Route("/events/{slug}", func(r chi.Router) {
		// Публичные маршруты для зрителей
		r.Get("/state", broadcastHandler.GetStateHandler)
		r.Get("/results", resultsHandler.StandingsHandler)
		r.Get("/teams", resultsHandler.TeamsHandler)

		// Голосование требует аутентификации
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))

			r.Post("/votes", voteHandler.SubmitHandler)
			r.Get("/teams/{teamName}/my-vote", voteHandler.MyVoteHandler)
		})

		// Пульт трансляции доступен только админу
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize(models.RoleAdmin))

			r.Post("/broadcast", broadcastHandler.CommandHandler)
			r.Get("/control-log", broadcastHandler.ControlLogHandler)
			r.Get("/teams/{teamName}/votes", voteHandler.TeamVotesHandler)
			r.Get("/weights", weightsHandler.GetHandler)
			r.Put("/weights", weightsHandler.UpdateHandler)
		})
	})
}
