package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studieren/recipe_back/auth"
	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/serializers"
)

type userHandler struct {
	auth *auth.Service
}

func (h *userHandler) register(c *gin.Context) {
	var p serializers.RegisterPayload
	if !bind(c, &p) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), p.Email, p.Password, p.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	gormtool.OK(c, http.StatusCreated, "created", serializers.NewUserView(user))
}

func (h *userHandler) token(c *gin.Context) {
	var p serializers.TokenPayload
	if !bind(c, &p) {
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), p.Email, p.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	token, claims, err := h.auth.IssueToken(user)
	if err != nil {
		respondError(c, err)
		return
	}
	gormtool.OK(c, http.StatusOK, "ok", serializers.NewTokenView(token, claims))
}

func (h *userHandler) me(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		gormtool.Fail(c, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}
	gormtool.OK(c, http.StatusOK, "ok", serializers.NewUserView(user))
}

func (h *userHandler) updateMe(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		gormtool.Fail(c, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}

	var p serializers.UserPatchPayload
	if !bind(c, &p) {
		return
	}
	if err := h.auth.Update(c.Request.Context(), user, p.Update()); err != nil {
		respondError(c, err)
		return
	}
	gormtool.OK(c, http.StatusOK, "updated", serializers.NewUserView(user))
}

func (h *userHandler) logout(c *gin.Context) {
	claims, ok := auth.CurrentClaims(c)
	if !ok {
		gormtool.Fail(c, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}
	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
