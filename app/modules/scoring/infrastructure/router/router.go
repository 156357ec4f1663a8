package scoringrouter

import (
	"github.com/go-chi/chi/v5"

	scoringhandlers "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/handlers"
)

// BasePath is where the operator API is mounted.
const BasePath = "/api/v1"

// Register mounts the operator API on r.
func Register(r chi.Router, h scoringhandlers.Handlers, allowedOrigins []string) {
	r.Route(BasePath, func(r chi.Router) {
		r.Use(scoringhandlers.CORSMiddleware(allowedOrigins))

		r.Route("/competitions", func(r chi.Router) {
			r.Get("/", h.ListCompetitions)
			r.Post("/", h.CreateCompetition)
			r.Route("/{competitionID}", func(r chi.Router) {
				r.Get("/", h.GetCompetition)
				r.Put("/", h.UpdateCompetition)
				r.Delete("/", h.DeleteCompetition)
				r.Get("/tasks", h.ListTasks)
				r.Post("/tasks", h.CreateTask)
				r.Post("/submissions", h.SubmitFlag)
				r.Get("/scoreboard", h.Scoreboard)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Get("/{taskID}", h.GetTask)
			r.Put("/{taskID}", h.UpdateTask)
			r.Delete("/{taskID}", h.DeleteTask)
		})

		r.Route("/players", func(r chi.Router) {
			r.Get("/", h.ListPlayers)
			r.Post("/", h.CreatePlayer)
			r.Get("/{playerID}", h.GetPlayer)
			r.Put("/{playerID}", h.UpdatePlayer)
			r.Delete("/{playerID}", h.DeletePlayer)
			r.Get("/{playerID}/solves", h.PlayerSolves)
		})

		r.Get("/scoreboard", h.Scoreboard)
		r.Get("/events", h.Events)
	})
}
