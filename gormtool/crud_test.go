package gormtool

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/studieren/recipe_back/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestTool(t *testing.T) *CRUDTool {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatal(err)
	}
	tool := NewCRUDTool(db, nil, nil, nil)
	tool.EnableLog = false
	return tool
}

// denyAll 拒绝所有请求
type denyAll struct{}

func (denyAll) Authorize(uint, uint, string) error { return errors.New("denied") }

func seedTags(t *testing.T, tool *CRUDTool, tags ...models.Tag) []models.Tag {
	t.Helper()
	if err := tool.DB.Create(&tags).Error; err != nil {
		t.Fatal(err)
	}
	return tags
}

func TestFindOwned(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()
	tags := seedTags(t, tool, models.Tag{UserID: 1, Name: "a"}, models.Tag{UserID: 2, Name: "b"})

	var got models.Tag
	if err := tool.FindOwned(ctx, 1, ActionRead, &got, tags[0].ID); err != nil || got.Name != "a" {
		t.Errorf("FindOwned() own record = %+v, %v", got, err)
	}

	tests := []struct {
		name string
		tool func() *CRUDTool
		user uint
		id   uint
	}{
		{"other user's record", func() *CRUDTool { return tool }, 1, tags[1].ID},
		{"missing record", func() *CRUDTool { return tool }, 1, 999},
		{"denied by authorizer", func() *CRUDTool {
			c := *tool
			c.Authz = denyAll{}
			return &c
		}, 1, tags[0].ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tag models.Tag
			err := tt.tool().FindOwned(ctx, tt.user, ActionRead, &tag, tt.id)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("FindOwned() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestListOwnedPaginatesWithConditions(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()
	seedTags(t, tool,
		models.Tag{UserID: 1, Name: "a"},
		models.Tag{UserID: 1, Name: "b"},
		models.Tag{UserID: 1, Name: "c"},
		models.Tag{UserID: 1, Name: "d"},
		models.Tag{UserID: 2, Name: "e"},
	)

	qb := &QueryBuilder{
		Conditions: []QueryCondition{{Field: "name", Operator: "IN", Value: []string{"a", "b", "c", "e"}}},
		Sorts:      []SortCondition{{Field: "name", Direction: "DESC"}},
	}
	page := &Pagination{Page: 1, PageSize: 2}
	var tags []models.Tag
	if err := tool.ListOwned(ctx, 1, &tags, qb, page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 {
		t.Errorf("Total = %d, want 3", page.Total)
	}
	if len(tags) != 2 || tags[0].Name != "c" || tags[1].Name != "b" {
		t.Errorf("tags = %+v, want c, b", tags)
	}

	tags = nil
	if err := tool.ListOwned(ctx, 2, &tags, nil, nil); err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0].Name != "e" {
		t.Errorf("user 2 tags = %+v", tags)
	}
}

func TestDeleteOwnedRemovesJoinRows(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()
	tag := models.Tag{UserID: 1, Name: "gone"}
	recipe := models.Recipe{UserID: 1, Title: "r", Tags: []models.Tag{tag}}
	if err := tool.DB.Create(&recipe).Error; err != nil {
		t.Fatal(err)
	}
	tagID := recipe.Tags[0].ID

	if err := tool.DeleteOwned(ctx, 2, &models.Tag{}, tagID, JoinRef{Table: "recipe_tags", Column: "tag_id"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteOwned() by stranger error = %v, want ErrNotFound", err)
	}
	if err := tool.DeleteOwned(ctx, 1, &models.Tag{}, tagID, JoinRef{Table: "recipe_tags", Column: "tag_id"}); err != nil {
		t.Fatalf("DeleteOwned() unexpected error = %v", err)
	}

	var joins, recipes int64
	tool.DB.Table("recipe_tags").Count(&joins)
	tool.DB.Model(&models.Recipe{}).Count(&recipes)
	if joins != 0 || recipes != 1 {
		t.Errorf("join rows = %d recipes = %d, want 0 and 1", joins, recipes)
	}
}

func TestWithTransactionRollsBack(t *testing.T) {
	tool := newTestTool(t)
	boom := errors.New("boom")

	err := tool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&models.Tag{UserID: 1, Name: "temp"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTransaction() error = %v", err)
	}
	var n int64
	tool.DB.Model(&models.Tag{}).Count(&n)
	if n != 0 {
		t.Errorf("tags = %d after rollback, want 0", n)
	}
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{gorm.ErrRecordNotFound, ErrNotFound},
		{gorm.ErrDuplicatedKey, ErrDuplicate},
	}
	for _, tt := range tests {
		got := TranslateError(tt.in)
		if tt.want == nil {
			if got != nil {
				t.Errorf("TranslateError(nil) = %v", got)
			}
			continue
		}
		if !errors.Is(got, tt.want) {
			t.Errorf("TranslateError(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query     string
		want      *Pagination
		wantParam string
	}{
		{"", nil, ""},
		{"?page=3", &Pagination{Page: 3, PageSize: DefaultPageSize}, ""},
		{"?page_size=500", &Pagination{Page: 1, PageSize: MaxPageSize}, ""},
		{"?page=0", nil, "page"},
		{"?page_size=x", nil, "page_size"},
		{"?page=2&page_size=0", nil, "page_size"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			got, err := Paginate(c)
			if tt.wantParam != "" {
				var pe *ParamError
				if !errors.As(err, &pe) || pe.Param != tt.wantParam {
					t.Fatalf("Paginate() error = %v, want ParamError for %s", err, tt.wantParam)
				}
				return
			}
			if err != nil {
				t.Fatalf("Paginate() unexpected error = %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("Paginate() = %+v, want nil", got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Errorf("Paginate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHealthReportsDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tool := newTestTool(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/health", nil)

	tool.Health(c)
	if w.Code != http.StatusOK {
		t.Errorf("Health() status = %d, want 200", w.Code)
	}
}
