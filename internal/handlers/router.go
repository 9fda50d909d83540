// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/pokerdice/internal/auth"
	"github.com/jason-s-yu/pokerdice/internal/events"
	"github.com/jason-s-yu/pokerdice/internal/game"
	"github.com/jason-s-yu/pokerdice/internal/middleware"
	"github.com/sirupsen/logrus"
)

// API bundles what the HTTP handlers need.
type API struct {
	Games    *game.Service
	Registry *events.Registry
	Sessions *auth.Sessions
	Logger   *logrus.Logger

	// AllowedOrigins is used for CORS and for the websocket origin check.
	AllowedOrigins []string
}

// NewRouter mounts every route. All routes except /healthz require a session token.
func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(api.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/healthz"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser(api.Sessions))

		r.Route("/lobbies/{lobbyID}", func(r chi.Router) {
			r.Post("/game", api.createGame)
			r.Post("/roll", api.rollFirst)
			r.Post("/reroll", api.reroll)
		})
		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Get("/", api.gameState)
			r.Get("/turn", api.currentTurn)
			r.Get("/rounds", api.roundHistory)
			r.Post("/end-turn", api.endTurn)
			r.Post("/end", api.endGame)
		})
		r.Get("/events/ws", api.EventsWSHandler)
	})
	return r
}
