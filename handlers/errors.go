package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studieren/recipe_back/auth"
	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/logging"
	"github.com/studieren/recipe_back/serializers"
	"gorm.io/gorm"
)

// respondError maps err to a status and writes the error envelope.
func respondError(c *gin.Context, err error) {
	var fe serializers.FieldErrors
	var pe *gormtool.ParamError
	switch {
	case errors.As(err, &fe):
		gormtool.Invalid(c, fe)
	case errors.As(err, &pe):
		gormtool.Invalid(c, serializers.FieldErrors{pe.Param: pe.Message})
	case errors.Is(err, gormtool.ErrInvalidID):
		gormtool.Fail(c, http.StatusBadRequest, "invalid id")
	case errors.Is(err, gormtool.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		gormtool.Fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		gormtool.Invalid(c, serializers.FieldErrors{serializers.NonFieldErrors: "Unable to authenticate with provided credentials."})
	case errors.Is(err, auth.ErrEmailTaken):
		gormtool.Invalid(c, serializers.FieldErrors{"email": "User with this email already exists."})
	case errors.Is(err, gormtool.ErrDuplicate), errors.Is(err, gorm.ErrDuplicatedKey):
		gormtool.Fail(c, http.StatusBadRequest, "record already exists")
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		gormtool.Fail(c, http.StatusInternalServerError, "internal server error")
	}
}

// bind decodes and validates the body into dst, writing the error response on failure.
func bind(c *gin.Context, dst interface{}) bool {
	if err := serializers.Decode(c.Request.Body, dst); err != nil {
		respondError(c, err)
		return false
	}
	if n, ok := dst.(interface{ Normalize() }); ok {
		n.Normalize()
	}
	if err := serializers.ValidateStruct(dst); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

// userID returns the authenticated caller. Routes using it sit behind auth middleware.
func userID(c *gin.Context) (uint, bool) {
	id, ok := auth.GetUserID(c)
	if !ok {
		gormtool.Fail(c, http.StatusUnauthorized, "authentication credentials were not provided")
	}
	return id, ok
}
