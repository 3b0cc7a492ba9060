package webserver

import (
	"context"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func attachRoutes(ctx context.Context, r *gin.Engine, d Deps) {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders: []string{"Content-Length", "ETag"},
	}
	if origins := d.Config.CORSOrigins; len(origins) == 0 || slices.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	secret := []byte(d.Config.JWTSecret)
	manifestH := NewManifest(d.Config.Manifest, d.Config.PublicURL)
	webhookH := NewWebhook(d.DB, d.Log)
	challengeH := NewChallengeHandlers(d.Catalog, d.Challenges, d.Contract, d.Config.Chain.TxTimeout, d.Log)
	authH := NewAuth(d.Nonces, secret, d.Log)
	eventsH := NewEventStream(d.Events, d.Config.CORSOrigins, d.Log)
	limiter := NewRateLimiter(ctx, d.Config.RateLimit, d.Config.RateWindow)

	r.GET("/.well-known/farcaster.json", manifestH.Get)
	r.POST("/api/webhook", RateLimitMiddleware(limiter), webhookH.Receive)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.GET("/challenges", challengeH.List)
		v1.GET("/challenges/:id", challengeH.Get)
		v1.GET("/users/:address/dashboard", challengeH.Dashboard)
		v1.GET("/events", eventsH.Stream)

		v1.POST("/auth/challenge", RateLimitMiddleware(limiter), authH.Challenge)
		v1.POST("/auth/verify", RateLimitMiddleware(limiter), authH.Verify)

		secured := v1.Group("")
		secured.Use(JWTMiddleware(secret), RateLimitMiddleware(limiter))
		secured.POST("/challenges/prepare", challengeH.PrepareCreate)
		secured.POST("/challenges/:id/prepare/:action", challengeH.PrepareAction)
		secured.POST("/tx/confirm", challengeH.Confirm)
	}
}
