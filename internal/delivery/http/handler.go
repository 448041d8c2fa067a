// Package http is the thin request layer over the exchange service. It
// parses identifiers and bodies, delegates to the service, and maps domain
// errors onto the {message, status} envelope. No business logic lives here.
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gameexchange/internal/domain"
	"gameexchange/internal/exchange"
)

type Handler struct {
	service *exchange.Service
}

func NewHandler(service *exchange.Service) *Handler {
	return &Handler{service: service}
}

func fail(c *gin.Context, err error) {
	status := domain.HTTPStatus(err)
	c.JSON(status, gin.H{"message": err.Error(), "status": status})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, domain.E(domain.KindInvalidArgument, "invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

// ----- offers -----

type createOfferRequest struct {
	GameRequested int64 `json:"gameRequested" binding:"required"`
	GameOffered   int64 `json:"gameOffered" binding:"required"`
}

func (h *Handler) CreateOffer(c *gin.Context) {
	var req createOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.Wrap(domain.KindInvalidArgument, err, "gameRequested and gameOffered are required"))
		return
	}
	detail, err := h.service.CreateOffer(c.Request.Context(), req.GameRequested, req.GameOffered)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *Handler) GetOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.service.GetOffer(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type decideOfferRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) DecideOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req decideOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.Wrap(domain.KindInvalidArgument, err, "status is required"))
		return
	}
	detail, err := h.service.DecideOffer(c.Request.Context(), id, domain.OfferStatus(req.Status))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ----- games -----

func (h *Handler) ListGames(c *gin.Context) {
	games, err := h.service.ListGames(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, games)
}

func (h *Handler) GetGame(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	game, err := h.service.GetGame(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (h *Handler) GetGameByName(c *gin.Context) {
	game, err := h.service.GetGameByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (h *Handler) CreateGame(c *gin.Context) {
	var game domain.Game
	if err := c.ShouldBindJSON(&game); err != nil {
		fail(c, domain.Wrap(domain.KindInvalidArgument, err, "invalid game body"))
		return
	}
	created, err := h.service.CreateGame(c.Request.Context(), game)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ReplaceGame(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var game domain.Game
	if err := c.ShouldBindJSON(&game); err != nil {
		fail(c, domain.Wrap(domain.KindInvalidArgument, err, "invalid game body"))
		return
	}
	updated, err := h.service.ReplaceGame(c.Request.Context(), id, game)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) PatchGame(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch domain.GamePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, domain.Wrap(domain.KindInvalidArgument, err, "invalid game patch"))
		return
	}
	updated, err := h.service.PatchGame(c.Request.Context(), id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteGame(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteGame(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ----- users -----

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type userRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.Wrap(domain.KindInvalidArgument, err, "invalid user body"))
		return
	}
	created, err := h.service.CreateUser(c.Request.Context(), domain.User{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ReplaceUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.Wrap(domain.KindInvalidArgument, err, "invalid user body"))
		return
	}
	updated, err := h.service.ReplaceUser(c.Request.Context(), id, domain.User{
		Username: req.Username,
		Password: req.Password,
		Address:  req.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) PatchUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch domain.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, domain.Wrap(domain.KindInvalidArgument, err, "invalid user patch"))
		return
	}
	updated, err := h.service.PatchUser(c.Request.Context(), id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteUser(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
