package serializers

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Relation names used for metrics and nested payload keys.
const (
	RelationTags        = "tags"
	RelationIngredients = "ingredients"
)

// RecipePreloads loads both relations of a recipe.
var RecipePreloads = []string{"Tags", "Ingredients"}

// RecipePayload is the body of recipe writes. A nil field was absent from the
// request. Owner keys are not part of the payload and are ignored.
type RecipePayload struct {
	Title       *string         `json:"title" validate:"omitempty,notblank,max=255"`
	TimeMinutes *int            `json:"time_minutes" validate:"omitempty,gte=0"`
	Price       *float64        `json:"price" validate:"omitempty,gte=0,lt=1000"`
	Link        *string         `json:"link" validate:"omitempty,max=255,urlorempty"`
	Description *string         `json:"description"`
	Tags        *[]LabelPayload `json:"tags" validate:"omitempty,dive"`
	Ingredients *[]LabelPayload `json:"ingredients" validate:"omitempty,dive"`
}

// Validate checks field rules. With full set, title, time_minutes and price are required.
func (p *RecipePayload) Validate(full bool) error {
	p.normalize()

	errs := FieldErrors{}
	if err := ValidateStruct(p); err != nil {
		if !errors.As(err, &errs) {
			return err
		}
	}
	if full {
		required := map[string]bool{
			"title":        p.Title == nil,
			"time_minutes": p.TimeMinutes == nil,
			"price":        p.Price == nil,
		}
		for field, missing := range required {
			if missing {
				errs[field] = errorMessages["required"]
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (p *RecipePayload) normalize() {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
	}
	if p.Link != nil {
		l := strings.TrimSpace(*p.Link)
		p.Link = &l
	}
	// decimal(5,2): round before the range check
	if p.Price != nil {
		v := math.Round(*p.Price*100) / 100
		p.Price = &v
	}
	for _, list := range []*[]LabelPayload{p.Tags, p.Ingredients} {
		if list == nil {
			continue
		}
		for i := range *list {
			(*list)[i].Normalize()
		}
	}
}

// apply copies the present scalar fields onto r.
func (p *RecipePayload) apply(r *models.Recipe) {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.TimeMinutes != nil {
		r.TimeMinutes = *p.TimeMinutes
	}
	if p.Price != nil {
		r.Price = *p.Price
	}
	if p.Link != nil {
		r.Link = *p.Link
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
}

// CreateRecipe stores a recipe owned by userID with its nested tags and ingredients.
// On return r holds the reloaded recipe.
func CreateRecipe(ctx context.Context, tool *gormtool.CRUDTool, userID uint, p *RecipePayload) (*models.Recipe, error) {
	r := &models.Recipe{UserID: userID}
	p.apply(r)

	err := tool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(r).Error; err != nil {
			return err
		}
		if err := p.syncRelations(tx, r, false); err != nil {
			return err
		}
		return reload(tool, tx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRecipe applies p to an owned recipe. Supplied tags or ingredients, even
// empty lists, replace the current ones; absent lists are left untouched.
func UpdateRecipe(ctx context.Context, tool *gormtool.CRUDTool, r *models.Recipe, p *RecipePayload) error {
	p.apply(r)

	return tool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(r).Error; err != nil {
			return err
		}
		if err := p.syncRelations(tx, r, true); err != nil {
			return err
		}
		return reload(tool, tx, r)
	})
}

func (p *RecipePayload) syncRelations(tx *gorm.DB, r *models.Recipe, replace bool) error {
	if p.Tags != nil {
		tags, err := ResolveLabels[models.Tag](tx, RelationTags, r.UserID, *p.Tags)
		if err != nil {
			return err
		}
		if err := replaceAssociation(tx, r, "Tags", tags, replace); err != nil {
			return err
		}
	}
	if p.Ingredients != nil {
		ingredients, err := ResolveLabels[models.Ingredient](tx, RelationIngredients, r.UserID, *p.Ingredients)
		if err != nil {
			return err
		}
		if err := replaceAssociation(tx, r, "Ingredients", ingredients, replace); err != nil {
			return err
		}
	}
	return nil
}

func replaceAssociation[T any](tx *gorm.DB, r *models.Recipe, name string, values []T, replace bool) error {
	assoc := tx.Model(r).Association(name)
	switch {
	case replace && len(values) == 0:
		return assoc.Clear()
	case replace:
		return assoc.Replace(values)
	case len(values) == 0:
		return nil
	default:
		return assoc.Append(values)
	}
}

func reload(tool *gormtool.CRUDTool, tx *gorm.DB, r *models.Recipe) error {
	var fresh models.Recipe
	q := tool.BuildQuery(tx, &gormtool.QueryBuilder{Preloads: RecipePreloads})
	if err := q.First(&fresh, r.ID).Error; err != nil {
		return err
	}
	*r = fresh
	return nil
}

// RecipeView is the list representation.
type RecipeView struct {
	ID          uint        `json:"id"`
	Title       string      `json:"title"`
	TimeMinutes int         `json:"time_minutes"`
	Price       float64     `json:"price"`
	Link        string      `json:"link"`
	Tags        []LabelView `json:"tags"`
	Ingredients []LabelView `json:"ingredients"`
}

// RecipeDetailView adds the description.
type RecipeDetailView struct {
	RecipeView
	Description string `json:"description"`
}

func NewRecipeView(r *models.Recipe) RecipeView {
	return RecipeView{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Link:        r.Link,
		Tags:        LabelViews[models.Tag](r.Tags),
		Ingredients: LabelViews[models.Ingredient](r.Ingredients),
	}
}

func NewRecipeDetailView(r *models.Recipe) RecipeDetailView {
	return RecipeDetailView{
		RecipeView:  NewRecipeView(r),
		Description: r.Description,
	}
}

func NewRecipeViews(recipes []models.Recipe) []RecipeView {
	out := make([]RecipeView, 0, len(recipes))
	for i := range recipes {
		out = append(out, NewRecipeView(&recipes[i]))
	}
	return out
}
