package serializers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/studieren/recipe_back/config"
	"github.com/studieren/recipe_back/database"
	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/models"
	"gorm.io/gorm"
)

func newTestTool(t *testing.T) *gormtool.CRUDTool {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("database.Open() unexpected error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	tool := gormtool.NewCRUDTool(db, nil, nil, nil)
	tool.EnableLog = false
	return tool
}

func ptr[T any](v T) *T { return &v }

func labels(names ...string) *[]LabelPayload {
	out := make([]LabelPayload, 0, len(names))
	for _, n := range names {
		out = append(out, LabelPayload{Name: n})
	}
	return &out
}

func names(views []LabelView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Name)
	}
	return out
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"object", `{"title":"Soup","time_minutes":5}`, false},
		{"empty body", "", false},
		{"unknown keys ignored", `{"user_id":9,"user":9}`, false},
		{"malformed", `{"title":`, true},
		{"not an object", `[1,2]`, true},
		{"wrong type", `{"time_minutes":"five"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p RecipePayload
			err := Decode(strings.NewReader(tt.body), &p)
			if !tt.wantErr {
				if err != nil {
					t.Errorf("Decode() unexpected error = %v", err)
				}
				return
			}
			var fe FieldErrors
			if !errors.As(err, &fe) || len(fe) == 0 {
				t.Errorf("Decode() error = %v, want FieldErrors", err)
			}
		})
	}
}

func TestDecodeKeyPresence(t *testing.T) {
	var p RecipePayload
	if err := Decode(strings.NewReader(`{"tags":[],"time_minutes":0}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Tags == nil || len(*p.Tags) != 0 {
		t.Errorf("tags = %v, want present and empty", p.Tags)
	}
	if p.Ingredients != nil {
		t.Error("absent ingredients must stay nil")
	}
	if p.TimeMinutes == nil || *p.TimeMinutes != 0 {
		t.Error("time_minutes 0 must be present")
	}
}

func TestRecipePayloadValidate(t *testing.T) {
	tests := []struct {
		name       string
		payload    RecipePayload
		full       bool
		wantFields []string
	}{
		{"full valid", RecipePayload{Title: ptr("Soup"), TimeMinutes: ptr(5), Price: ptr(5.5)}, true, nil},
		{"full missing fields", RecipePayload{Title: ptr("Soup")}, true, []string{"time_minutes", "price"}},
		{"partial empty", RecipePayload{}, false, nil},
		{"blank title", RecipePayload{Title: ptr("   ")}, false, []string{"title"}},
		{"negative time", RecipePayload{TimeMinutes: ptr(-1)}, false, []string{"time_minutes"}},
		{"price too high", RecipePayload{Price: ptr(1000.0)}, false, []string{"price"}},
		{"price rounds up to limit", RecipePayload{Price: ptr(999.996)}, false, []string{"price"}},
		{"price rounds down below limit", RecipePayload{Price: ptr(999.994)}, false, nil},
		{"bad link", RecipePayload{Link: ptr("not a url")}, false, []string{"link"}},
		{"empty link allowed", RecipePayload{Link: ptr("")}, false, nil},
		{"blank nested name", RecipePayload{Tags: labels("ok", " ")}, false, []string{"tags[1].name"}},
		{"long nested name", RecipePayload{Ingredients: labels(strings.Repeat("x", 256))}, false, []string{"ingredients[0].name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate(tt.full)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			var fe FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("Validate() error = %v, want FieldErrors", err)
			}
			if len(fe) != len(tt.wantFields) {
				t.Errorf("Validate() fields = %v, want %v", fe, tt.wantFields)
			}
			for _, f := range tt.wantFields {
				if _, ok := fe[f]; !ok {
					t.Errorf("missing error for %s in %v", f, fe)
				}
			}
		})
	}
}

func TestRecipePayloadRoundsPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{12.346, 12.35},
		{999.994, 999.99},
		{0.004, 0},
		{5.5, 5.5},
	}
	for _, tt := range tests {
		p := RecipePayload{Price: ptr(tt.in)}
		if err := p.Validate(false); err != nil {
			t.Fatalf("Validate(%v) unexpected error = %v", tt.in, err)
		}
		var r models.Recipe
		p.apply(&r)
		if r.Price != tt.want {
			t.Errorf("price %v stored as %v, want %v", tt.in, r.Price, tt.want)
		}
	}
}

func TestFetchOrCreateScopedPerUser(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()
	p := &LabelPayload{Name: "Vegan"}

	first, created, err := CreateLabel[models.Tag](ctx, tool, RelationTags, 1, p)
	if err != nil || !created {
		t.Fatalf("first CreateLabel() = created %v, err %v", created, err)
	}
	again, created, err := CreateLabel[models.Tag](ctx, tool, RelationTags, 1, p)
	if err != nil || created {
		t.Fatalf("second CreateLabel() = created %v, err %v", created, err)
	}
	if again.ID != first.ID {
		t.Errorf("second CreateLabel() id = %d, want %d", again.ID, first.ID)
	}
	other, created, err := CreateLabel[models.Tag](ctx, tool, RelationTags, 2, p)
	if err != nil || !created || other.ID == first.ID {
		t.Errorf("other user's CreateLabel() = id %d created %v err %v, want a new record", other.ID, created, err)
	}
}

func TestFetchOrCreateInsideTransaction(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()

	err := tool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Ingredient{UserID: 1, Name: "Salt"}).Error; err != nil {
			return err
		}
		rec, created, err := FetchOrCreate[models.Ingredient](tx, RelationIngredients, 1, "Salt")
		if err != nil {
			return err
		}
		if created || rec.Name != "Salt" {
			t.Errorf("FetchOrCreate() = %+v created %v, want existing", rec, created)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateRecipeReusesLabels(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()
	existing := models.Tag{UserID: 1, Name: "Dinner"}
	if err := tool.DB.Create(&existing).Error; err != nil {
		t.Fatal(err)
	}
	if err := tool.DB.Create(&models.Tag{UserID: 2, Name: "Lunch"}).Error; err != nil {
		t.Fatal(err)
	}

	p := &RecipePayload{
		Title:       ptr("Curry"),
		TimeMinutes: ptr(30),
		Price:       ptr(12.346),
		Tags:        labels("Dinner", "Lunch", "Dinner"),
		Ingredients: labels("Rice"),
	}
	if err := p.Validate(true); err != nil {
		t.Fatal(err)
	}
	r, err := CreateRecipe(ctx, tool, 1, p)
	if err != nil {
		t.Fatalf("CreateRecipe() unexpected error = %v", err)
	}

	if r.Price != 12.35 {
		t.Errorf("price = %v, want 12.35", r.Price)
	}
	if got := names(LabelViews[models.Tag](r.Tags)); strings.Join(got, ",") != "Dinner,Lunch" {
		t.Errorf("tags = %v, want [Dinner Lunch]", got)
	}
	if r.Tags[0].ID != existing.ID {
		t.Errorf("Dinner id = %d, want reused %d", r.Tags[0].ID, existing.ID)
	}
	for _, tag := range r.Tags {
		if tag.UserID != 1 {
			t.Errorf("tag %q owned by %d, want 1", tag.Name, tag.UserID)
		}
	}

	var count int64
	tool.DB.Model(&models.Tag{}).Where("user_id = ?", 1).Count(&count)
	if count != 2 {
		t.Errorf("user 1 tags = %d, want 2", count)
	}
}

func TestUpdateRecipeReplacesSuppliedRelations(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()

	r, err := CreateRecipe(ctx, tool, 1, &RecipePayload{
		Title: ptr("Toast"), TimeMinutes: ptr(2), Price: ptr(1.0),
		Tags: labels("Breakfast"), Ingredients: labels("Bread", "Butter"),
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name            string
		payload         RecipePayload
		wantTags        string
		wantIngredients string
	}{
		{"absent lists untouched", RecipePayload{Title: ptr("Better toast")}, "Breakfast", "Bread,Butter"},
		{"empty tags clear", RecipePayload{Tags: labels()}, "", "Bread,Butter"},
		{"ingredients replaced", RecipePayload{Ingredients: labels("Jam")}, "", "Jam"},
		{"empty ingredients clear", RecipePayload{Ingredients: labels()}, "", ""},
		{"tags reattached", RecipePayload{Tags: labels("Brunch", "Breakfast")}, "Breakfast,Brunch", ""},
		{"tags replaced again", RecipePayload{Tags: labels("Brunch")}, "Brunch", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.payload.Validate(false); err != nil {
				t.Fatal(err)
			}
			if err := UpdateRecipe(ctx, tool, r, &tt.payload); err != nil {
				t.Fatalf("UpdateRecipe() unexpected error = %v", err)
			}
			v := NewRecipeDetailView(r)
			if got := strings.Join(names(v.Tags), ","); got != tt.wantTags {
				t.Errorf("tags = %q, want %q", got, tt.wantTags)
			}
			if got := strings.Join(names(v.Ingredients), ","); got != tt.wantIngredients {
				t.Errorf("ingredients = %q, want %q", got, tt.wantIngredients)
			}
		})
	}

	if r.Title != "Better toast" || r.UserID != 1 {
		t.Errorf("recipe = %q owner %d, want updated title and owner 1", r.Title, r.UserID)
	}
	var tags int64
	tool.DB.Model(&models.Tag{}).Count(&tags)
	if tags != 2 {
		t.Errorf("tags in table = %d, clearing associations must not delete tags", tags)
	}
}

func TestRenameLabelDuplicate(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()
	a := &models.Tag{UserID: 1, Name: "A"}
	b := &models.Tag{UserID: 1, Name: "B"}
	for _, tag := range []*models.Tag{a, b} {
		if err := tool.DB.Create(tag).Error; err != nil {
			t.Fatal(err)
		}
	}

	err := RenameLabel(ctx, tool, b, &LabelPayload{Name: "A"})
	var fe FieldErrors
	if !errors.As(err, &fe) || fe["name"] == "" {
		t.Fatalf("RenameLabel() to taken name error = %v, want field error on name", err)
	}
	if err := RenameLabel(ctx, tool, b, &LabelPayload{Name: "C"}); err != nil {
		t.Fatalf("RenameLabel() unexpected error = %v", err)
	}
	if b.Name != "C" {
		t.Errorf("name = %q, want C", b.Name)
	}
}

func TestRecipeViews(t *testing.T) {
	r := &models.Recipe{ID: 3, Title: "Pie", Description: "Bake it"}
	list := NewRecipeView(r)
	if list.Tags == nil || list.Ingredients == nil {
		t.Error("relations must render as empty lists, not null")
	}
	if d := NewRecipeDetailView(r); d.Description != "Bake it" || d.ID != 3 {
		t.Errorf("detail view = %+v", d)
	}
}
