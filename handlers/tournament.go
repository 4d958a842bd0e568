package handlers

import (
	"team-tournament-system/middleware"
	"team-tournament-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupTournamentRoutes wires the formation and settlement surface. All
// routes are admin actions and require the gateway user context.
func SetupTournamentRoutes(
	app *fiber.App,
	polls *services.PollService,
	preview *services.PreviewService,
	formation *services.FormationService,
	settlement *services.SettlementService,
) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Participation polls
	secured.Post("/polls", polls.CreatePoll)
	secured.Post("/polls/:id/votes", polls.CastVote)

	// Team formation: preview is read-only and re-randomized per call;
	// the commit writes everything or nothing.
	secured.Get("/tournaments/:id/teams/preview", preview.PreviewTeams)
	secured.Post("/tournaments/:id/teams", formation.FormTeams)

	// Settlement: tax preview and winner declaration share one engine.
	secured.Get("/tournaments/:id/tax/preview", settlement.TaxPreview)
	secured.Post("/tournaments/:id/winners", settlement.DeclareWinners)
}
