package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/serializers"
)

// labelHandler serves tags and ingredients, which differ only in table names.
type labelHandler[T any, P serializers.LabelPtr[T]] struct {
	tool     *gormtool.CRUDTool
	relation string
	// join is the recipe join-table column that references this record.
	join gormtool.JoinRef
}

func (h *labelHandler[T, P]) register(g *gin.RouterGroup) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

// list orders by name descending. assigned_only=1 keeps records used by a recipe, each once.
func (h *labelHandler[T, P]) list(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	qb := &gormtool.QueryBuilder{
		Sorts: []gormtool.SortCondition{
			{Field: "name", Direction: "DESC"},
			{Field: "id", Direction: "DESC"},
		},
	}

	if v := c.Query("assigned_only"); v != "" {
		assigned, err := strconv.ParseBool(v)
		if err != nil {
			gormtool.Invalid(c, serializers.FieldErrors{"assigned_only": "Must be 0 or 1."})
			return
		}
		if assigned {
			sub := h.tool.DB.WithContext(c.Request.Context()).Table(h.join.Table).Select(h.join.Column)
			qb.Conditions = append(qb.Conditions, gormtool.QueryCondition{Field: "id", Operator: "IN", Value: sub})
		}
	}

	page, err := gormtool.Paginate(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var items []T
	if err := h.tool.ListOwned(c.Request.Context(), uid, &items, qb, page); err != nil {
		respondError(c, err)
		return
	}
	gormtool.OKPage(c, "ok", serializers.LabelViews[T, P](items), page)
}

// create returns 200 with the existing record when the name is taken.
func (h *labelHandler[T, P]) create(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var p serializers.LabelPayload
	if !bind(c, &p) {
		return
	}

	rec, created, err := serializers.CreateLabel[T, P](c.Request.Context(), h.tool, h.relation, uid, &p)
	if err != nil {
		respondError(c, err)
		return
	}
	if created {
		gormtool.OK(c, http.StatusCreated, "created", serializers.NewLabelView(rec))
		return
	}
	gormtool.OK(c, http.StatusOK, "exists", serializers.NewLabelView(rec))
}

func (h *labelHandler[T, P]) update(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, err := gormtool.ParamID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	rec := P(new(T))
	if err := h.tool.FindOwned(c.Request.Context(), uid, gormtool.ActionWrite, rec, id); err != nil {
		respondError(c, err)
		return
	}

	var p serializers.LabelPayload
	if !bind(c, &p) {
		return
	}
	if err := serializers.RenameLabel(c.Request.Context(), h.tool, rec, &p); err != nil {
		respondError(c, err)
		return
	}
	gormtool.OK(c, http.StatusOK, "updated", serializers.NewLabelView(rec))
}

// delete also removes the join rows. Recipes are kept.
func (h *labelHandler[T, P]) delete(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, err := gormtool.ParamID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.tool.DeleteOwned(c.Request.Context(), uid, P(new(T)), id, h.join); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
