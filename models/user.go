package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email        string `gorm:"column:email;size:255;uniqueIndex;not null"`
	Name         string `gorm:"column:name;size:255"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	IsActive     bool   `gorm:"column:is_active;default:true"`
	LastLogin    *time.Time
}

func (User) TableName() string { return "users" }
