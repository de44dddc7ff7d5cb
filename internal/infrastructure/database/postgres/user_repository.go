package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainUser "smart-helmet-backend/internal/domain/user"
	"smart-helmet-backend/internal/infrastructure/database/postgres/models"
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domainUser.User, error) {
	var dbModel models.UserModel
	err := r.db.DB.WithContext(ctx).Where("user_id = ?", userID).First(&dbModel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainUser.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toUserEntity(&dbModel), nil
}

func (r *UserRepository) Upsert(ctx context.Context, u *domainUser.User) (*domainUser.User, error) {
	now := time.Now().UTC()
	dbModel := &models.UserModel{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	updates := []string{"updated_at"}
	if u.DisplayName != nil {
		updates = append(updates, "display_name")
	}
	if u.Email != nil {
		updates = append(updates, "email")
	}
	if u.PhoneNumber != nil {
		updates = append(updates, "phone_number")
	}

	err := r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(updates),
		}).
		Create(dbModel).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return r.GetByID(ctx, u.ID)
}

func toUserEntity(m *models.UserModel) *domainUser.User {
	return &domainUser.User{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Email:       m.Email,
		PhoneNumber: m.PhoneNumber,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
