// Package handlers wires the HTTP API onto gin.
package handlers

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/studieren/recipe_back/auth"
	"github.com/studieren/recipe_back/config"
	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/metrics"
	"github.com/studieren/recipe_back/models"
)

type Deps struct {
	Tool   *gormtool.CRUDTool
	Auth   *auth.Service
	Server config.ServerConfig
	// Limiter guards the credential endpoints. Nil disables limiting.
	Limiter *auth.RateLimiter
}

// NewRouter builds the engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(), metrics.Middleware())
	r.Use(cors.New(corsConfig(d.Server.CORSOrigins)))

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.GET("/health", d.Tool.Health)

	users := &userHandler{auth: d.Auth}
	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if d.Limiter == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{d.Limiter.Middleware(), h}
	}
	api.POST("/users", limited(users.register)...)
	api.POST("/users/token", limited(users.token)...)

	protected := api.Group("", d.Auth.Middleware())
	protected.GET("/users/me", users.me)
	protected.PATCH("/users/me", users.updateMe)
	protected.PUT("/users/me", users.updateMe)
	protected.POST("/users/logout", users.logout)

	(&recipeHandler{tool: d.Tool}).register(protected.Group("/recipes"))
	(&labelHandler[models.Tag, *models.Tag]{
		tool:     d.Tool,
		relation: "tags",
		join:     gormtool.JoinRef{Table: "recipe_tags", Column: "tag_id"},
	}).register(protected.Group("/tags"))
	(&labelHandler[models.Ingredient, *models.Ingredient]{
		tool:     d.Tool,
		relation: "ingredients",
		join:     gormtool.JoinRef{Table: "recipe_ingredients", Column: "ingredient_id"},
	}).register(protected.Group("/ingredients"))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
