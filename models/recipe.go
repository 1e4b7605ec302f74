package models

import "time"

// Owned is implemented by every record that belongs to exactly one user.
type Owned interface {
	OwnerID() uint
}

type Recipe struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	UserID      uint         `json:"-" gorm:"index;not null"`
	Title       string       `json:"title" gorm:"size:255;not null"`
	TimeMinutes int          `json:"time_minutes" gorm:"not null"`
	Price       float64      `json:"price" gorm:"type:decimal(5,2);not null"`
	Link        string       `json:"link" gorm:"size:255"`
	Description string       `json:"description" gorm:"type:text"`
	Tags        []Tag        `json:"tags" gorm:"many2many:recipe_tags;"`
	Ingredients []Ingredient `json:"ingredients" gorm:"many2many:recipe_ingredients;"`
	CreatedAt   time.Time    `json:"-"`
	UpdatedAt   time.Time    `json:"-"`
}

func (Recipe) TableName() string { return "recipes" }

func (r *Recipe) OwnerID() uint { return r.UserID }

// Tag names are unique per owner.
type Tag struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	UserID uint   `json:"-" gorm:"not null;uniqueIndex:idx_tags_user_name"`
	Name   string `json:"name" gorm:"size:255;not null;uniqueIndex:idx_tags_user_name"`
}

func (Tag) TableName() string { return "tags" }

func (t *Tag) OwnerID() uint { return t.UserID }
func (t *Tag) SetOwner(userID uint) { t.UserID = userID }
func (t *Tag) SetName(name string) { t.Name = name }
func (t *Tag) RecordID() uint { return t.ID }
func (t *Tag) LabelName() string { return t.Name }

// Ingredient names are unique per owner.
type Ingredient struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	UserID uint   `json:"-" gorm:"not null;uniqueIndex:idx_ingredients_user_name"`
	Name   string `json:"name" gorm:"size:255;not null;uniqueIndex:idx_ingredients_user_name"`
}

func (Ingredient) TableName() string { return "ingredients" }

func (i *Ingredient) OwnerID() uint { return i.UserID }
func (i *Ingredient) SetOwner(userID uint) { i.UserID = userID }
func (i *Ingredient) SetName(name string) { i.Name = name }
func (i *Ingredient) RecordID() uint { return i.ID }
func (i *Ingredient) LabelName() string { return i.Name }

// All lists the models to migrate, in dependency order.
func All() []interface{} {
	return []interface{}{&User{}, &Tag{}, &Ingredient{}, &Recipe{}}
}
