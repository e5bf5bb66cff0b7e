package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/courtside/cbbpoll/handlers"
	"github.com/courtside/cbbpoll/middleware"
	"github.com/courtside/cbbpoll/models"
)

// SetupRoutes wires every endpoint onto the router. Reads are public;
// writes require a session token, admin endpoints additionally require
// the admin role, and the results-bot endpoint accepts an API key.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	submitLimiter *middleware.RateLimiter,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	teamHandler *handlers.TeamHandler,
	bracketHandler *handlers.BracketHandler,
	predictionHandler *handlers.PredictionHandler,
	pollHandler *handlers.PollHandler,
	adminHandler *handlers.AdminHandler,
	wsHandler *handlers.WSHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", authHandler.Login)
			r.Get("/callback", authHandler.Callback)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Get("/confirm-email", authHandler.ConfirmEmail)
			})
		})

		r.Route("/teams", func(r chi.Router) {
			r.Get("/", teamHandler.List)
			r.Get("/search", teamHandler.Search)
			r.Get("/{slug}", teamHandler.GetBySlug)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Use(middleware.Authorize(models.RoleAdmin))

				r.Post("/", teamHandler.Create)
				r.Put("/{id}", teamHandler.Update)
				r.Post("/{id}/logo", teamHandler.UploadLogo)
				r.Delete("/{id}", teamHandler.Delete)
			})
		})

		r.Route("/conferences", func(r chi.Router) {
			r.Get("/", bracketHandler.ListConferences)
			r.Get("/{id}", bracketHandler.GetConference)
			r.Get("/{id}/bracket", bracketHandler.GetBracket)
			r.Get("/{id}/live", wsHandler.Subscribe)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Use(middleware.Authorize(models.RoleAdmin))

				r.Post("/", bracketHandler.CreateConference)
				r.Post("/{id}/recompute", bracketHandler.Recompute)
				r.Delete("/{id}", bracketHandler.DeleteConference)
			})
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/{id}", bracketHandler.GetGame)
			r.Get("/{id}/entrants", bracketHandler.GetEntrants)
			r.Get("/leaderboard", predictionHandler.Leaderboard)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Use(submitLimiter.Limit)

				r.Put("/{id}/prediction", predictionHandler.Submit)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Use(middleware.Authorize(models.RoleAdmin))

				r.Post("/", bracketHandler.CreateGame)
				r.Post("/{id}/result", bracketHandler.RecordResult)
				r.Delete("/{id}/result", bracketHandler.DeleteResult)
				r.Delete("/{id}", bracketHandler.DeleteGame)
			})
		})

		// The results bot records outcomes with an API key instead of a
		// session token.
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticateAPIKey)
			r.Post("/bot/games/{id}/result", bracketHandler.RecordResult)
		})

		r.Route("/polls", func(r chi.Router) {
			r.Get("/", pollHandler.List)
			r.Get("/weeks/{week}", pollHandler.GetByWeek)
			r.Get("/{id}", pollHandler.Get)
			r.Get("/{id}/results", pollHandler.Results)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)

				r.Get("/{id}/ballot", pollHandler.MyBallot)
				r.With(submitLimiter.Limit).Put("/{id}/ballot", pollHandler.SubmitBallot)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Use(middleware.Authorize(models.RoleAdmin))

				r.Post("/", pollHandler.Create)
				r.Post("/{id}/recompute", pollHandler.Recompute)
				r.Delete("/{id}", pollHandler.Delete)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{nickname}", userHandler.GetByNickname)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Get("/", userHandler.Me)
			r.Patch("/", userHandler.UpdateMe)
			r.Post("/apply", userHandler.ApplyAsVoter)
			r.Get("/predictions", predictionHandler.ListMine)
			r.Get("/score", predictionHandler.MyScore)
			r.Post("/api-keys", authHandler.IssueAPIKey)
			r.Delete("/api-keys/{keyID}", authHandler.RevokeAPIKey)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(models.RoleAdmin))

			r.Get("/users", adminHandler.ListUsers)
			r.Get("/applicants", adminHandler.ListApplicants)
			r.Put("/users/{id}/role", adminHandler.SetRole)
			r.Post("/voters/promote", adminHandler.PromoteVoters)
			r.Post("/voters/demote", adminHandler.DemoteVoters)
			r.Post("/applicants/clear", adminHandler.ClearApplicationFlags)
			r.Delete("/users/{id}", adminHandler.DeleteUser)
		})
	})
}
