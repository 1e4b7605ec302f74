package serializers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/metrics"
	"github.com/studieren/recipe_back/models"
	"gorm.io/gorm"
)

// Label is a per-user named record: a tag or an ingredient.
type Label interface {
	models.Owned
	SetOwner(userID uint)
	SetName(name string)
	RecordID() uint
	LabelName() string
}

// LabelPtr constrains P to be *T and a Label, so generic code can allocate T.
type LabelPtr[T any] interface {
	*T
	Label
}

// LabelPayload is the body of tag/ingredient writes and the nested items of a recipe.
type LabelPayload struct {
	Name string `json:"name" validate:"required,notblank,max=255"`
}

// Normalize trims the name.
func (p *LabelPayload) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
}

type LabelView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func NewLabelView(l Label) LabelView {
	return LabelView{ID: l.RecordID(), Name: l.LabelName()}
}

// LabelViews renders items in order. Never returns nil.
func LabelViews[T any, P LabelPtr[T]](items []T) []LabelView {
	out := make([]LabelView, 0, len(items))
	for i := range items {
		out = append(out, NewLabelView(P(&items[i])))
	}
	return out
}

const fetchOrCreateSavepoint = "fetch_or_create"

// FetchOrCreate returns userID's label named name, creating it when missing.
// created reports whether a row was inserted. tx must be a transaction: a
// concurrent insert of the same name is rolled back to a savepoint and re-read.
func FetchOrCreate[T any, P LabelPtr[T]](tx *gorm.DB, relation string, userID uint, name string) (rec P, created bool, err error) {
	defer func() {
		if err == nil {
			metrics.RecordReconciled(relation, created)
		}
	}()

	rec, err = findByName[T, P](tx, userID, name)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	rec = P(new(T))
	rec.SetOwner(userID)
	rec.SetName(name)

	if err := tx.SavePoint(fetchOrCreateSavepoint).Error; err != nil {
		return nil, false, fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := tx.Create(rec).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, err
		}
		// a concurrent insert won; roll back and read it
		if err := tx.RollbackTo(fetchOrCreateSavepoint).Error; err != nil {
			return nil, false, fmt.Errorf("failed to roll back to savepoint: %w", err)
		}
		rec, err = findByName[T, P](tx, userID, name)
		if err != nil {
			return nil, false, err
		}
		return rec, false, nil
	}
	return rec, true, nil
}

func findByName[T any, P LabelPtr[T]](tx *gorm.DB, userID uint, name string) (P, error) {
	rec := P(new(T))
	if err := gormtool.OwnedBy(tx, userID).Where("name = ?", name).Take(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ResolveLabels fetch-or-creates every payload name once, keeping first-seen order.
func ResolveLabels[T any, P LabelPtr[T]](tx *gorm.DB, relation string, userID uint, payloads []LabelPayload) ([]T, error) {
	seen := make(map[string]bool, len(payloads))
	out := make([]T, 0, len(payloads))
	for _, p := range payloads {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true

		rec, _, err := FetchOrCreate[T, P](tx, relation, userID, p.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s %q: %w", relation, p.Name, err)
		}
		out = append(out, *rec)
	}
	return out, nil
}

// CreateLabel is the POST handler's fetch-or-create in its own transaction.
func CreateLabel[T any, P LabelPtr[T]](ctx context.Context, tool *gormtool.CRUDTool, relation string, userID uint, p *LabelPayload) (rec P, created bool, err error) {
	err = tool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var txErr error
		rec, created, txErr = FetchOrCreate[T, P](tx, relation, userID, p.Name)
		return txErr
	})
	return rec, created, err
}

// RenameLabel sets a new name on rec. A name the owner already uses is a field error.
func RenameLabel(ctx context.Context, tool *gormtool.CRUDTool, rec Label, p *LabelPayload) error {
	if rec.LabelName() == p.Name {
		return nil
	}
	err := tool.DB.WithContext(ctx).Model(rec).Update("name", p.Name).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return FieldErrors{"name": "You already have an item with this name."}
	}
	if err != nil {
		return err
	}
	rec.SetName(p.Name)
	return nil
}
