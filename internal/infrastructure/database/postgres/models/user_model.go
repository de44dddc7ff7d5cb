package models

import (
	"time"
)

// UserModel represents the database model for User
type UserModel struct {
	ID          string    `gorm:"column:user_id;type:varchar(128);primaryKey"`
	DisplayName *string   `gorm:"type:varchar(255)"`
	Email       *string   `gorm:"type:varchar(255);index"`
	PhoneNumber *string   `gorm:"type:varchar(20)"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (UserModel) TableName() string {
	return "users"
}
