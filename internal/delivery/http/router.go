package http

import (
	"github.com/gin-gonic/gin"

	"gameexchange/internal/exchange"
)

// NewRouter wires all routes onto a gin engine.
func NewRouter(service *exchange.Service) *gin.Engine {
	app := gin.New()
	app.Use(gin.Recovery())

	h := NewHandler(service)

	games := app.Group("/games")
	{
		games.GET("", h.ListGames)
		games.POST("", h.CreateGame)
		games.GET("/:id", h.GetGame)
		games.PUT("/:id", h.ReplaceGame)
		games.PATCH("/:id", h.PatchGame)
		games.DELETE("/:id", h.DeleteGame)
		games.GET("/name/:name", h.GetGameByName)
	}

	users := app.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.POST("", h.CreateUser)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id", h.ReplaceUser)
		users.PATCH("/:id", h.PatchUser)
		users.DELETE("/:id", h.DeleteUser)
	}

	offers := app.Group("/offers")
	{
		offers.POST("/create", h.CreateOffer)
		offers.GET("/:id", h.GetOffer)
		offers.PATCH("/:id", h.DecideOffer)
	}

	return app
}
