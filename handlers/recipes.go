package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/models"
	"github.com/studieren/recipe_back/serializers"
)

var recipeJoins = []gormtool.JoinRef{
	{Table: "recipe_tags", Column: "recipe_id"},
	{Table: "recipe_ingredients", Column: "recipe_id"},
}

type recipeHandler struct {
	tool *gormtool.CRUDTool
}

func (h *recipeHandler) register(g *gin.RouterGroup) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update(true))
	g.PATCH("/:id", h.update(false))
	g.DELETE("/:id", h.delete)
}

// list filters by ?tags=1,2&ingredients=3 and orders by id descending.
func (h *recipeHandler) list(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	qb := &gormtool.QueryBuilder{
		Sorts:    []gormtool.SortCondition{{Field: "id", Direction: "DESC"}},
		Preloads: serializers.RecipePreloads,
	}
	filters := []struct {
		param, table, column string
	}{
		{"tags", "recipe_tags", "tag_id"},
		{"ingredients", "recipe_ingredients", "ingredient_id"},
	}
	for _, f := range filters {
		ids, err := parseIDs(c.Query(f.param))
		if err != nil {
			gormtool.Invalid(c, serializers.FieldErrors{f.param: "Expected a comma separated list of ids."})
			return
		}
		if len(ids) == 0 {
			continue
		}
		sub := h.tool.DB.WithContext(c.Request.Context()).Table(f.table).Select("recipe_id").Where(f.column+" IN ?", ids)
		qb.Conditions = append(qb.Conditions, gormtool.QueryCondition{Field: "id", Operator: "IN", Value: sub})
	}

	page, err := gormtool.Paginate(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var recipes []models.Recipe
	if err := h.tool.ListOwned(c.Request.Context(), uid, &recipes, qb, page); err != nil {
		respondError(c, err)
		return
	}
	gormtool.OKPage(c, "ok", serializers.NewRecipeViews(recipes), page)
}

func (h *recipeHandler) create(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var p serializers.RecipePayload
	if err := serializers.Decode(c.Request.Body, &p); err != nil {
		respondError(c, err)
		return
	}
	if err := p.Validate(true); err != nil {
		respondError(c, err)
		return
	}

	recipe, err := serializers.CreateRecipe(c.Request.Context(), h.tool, uid, &p)
	if err != nil {
		respondError(c, err)
		return
	}
	gormtool.OK(c, http.StatusCreated, "created", serializers.NewRecipeDetailView(recipe))
}

func (h *recipeHandler) get(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, err := gormtool.ParamID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var recipe models.Recipe
	if err := h.tool.FindOwned(c.Request.Context(), uid, gormtool.ActionRead, &recipe, id, serializers.RecipePreloads...); err != nil {
		respondError(c, err)
		return
	}
	gormtool.OK(c, http.StatusOK, "ok", serializers.NewRecipeDetailView(&recipe))
}

// update serves PUT (full) and PATCH.
func (h *recipeHandler) update(full bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			return
		}
		id, err := gormtool.ParamID(c)
		if err != nil {
			respondError(c, err)
			return
		}

		var recipe models.Recipe
		if err := h.tool.FindOwned(c.Request.Context(), uid, gormtool.ActionWrite, &recipe, id); err != nil {
			respondError(c, err)
			return
		}

		var p serializers.RecipePayload
		if err := serializers.Decode(c.Request.Body, &p); err != nil {
			respondError(c, err)
			return
		}
		if err := p.Validate(full); err != nil {
			respondError(c, err)
			return
		}

		if err := serializers.UpdateRecipe(c.Request.Context(), h.tool, &recipe, &p); err != nil {
			respondError(c, err)
			return
		}
		gormtool.OK(c, http.StatusOK, "updated", serializers.NewRecipeDetailView(&recipe))
	}
}

func (h *recipeHandler) delete(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, err := gormtool.ParamID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.tool.DeleteOwned(c.Request.Context(), uid, &models.Recipe{}, id, recipeJoins...); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseIDs parses "1,2,3". An empty string yields no ids.
func parseIDs(s string) ([]uint, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil || n == 0 {
			return nil, gormtool.ErrInvalidID
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}
