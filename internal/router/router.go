package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/concert-reservation/internal/config"
	"github.com/iliyamo/concert-reservation/internal/handler"
	"github.com/iliyamo/concert-reservation/internal/middleware"
)

// RegisterRoutes registers routes that sit outside the concert API.
// Currently it exposes only a health check for load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterConcerts mounts the concert API under /concerts.  Read endpoints
// go through the response cache; mutating endpoints go through the rate
// limiter.  Both middlewares are pass-through when Redis is unavailable.
func RegisterConcerts(e *echo.Echo, h *handler.ConcertHandler, cache *middleware.ResponseCache, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/concerts")

	cached := cache.Middleware()
	g.GET("", h.ListConcerts, cached)
	// Static segments are matched before :concertId.
	g.GET("/metrics", h.GetMetrics, cached)
	g.GET("/history", h.GetHistory, cached)
	g.GET("/:concertId", h.GetConcert, cached)

	// Admin calls are charged per client; seat calls per concert and user.
	perClient := middleware.NewTokenBucket(rl, rdb, middleware.ClientKey)
	perSeat := middleware.NewTokenBucket(rl, rdb, middleware.SeatKey)
	g.POST("", h.CreateConcert, perClient)
	g.DELETE("/:concertId", h.DeleteConcert, perClient)
	g.POST("/:concertId/reserve", h.ReserveSeat, perSeat)
	g.POST("/:concertId/cancel", h.CancelSeat, perSeat)
}
