package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/db"
)

// AdminRepository reads operator accounts. Admins are written only by the
// seed command.
type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(database *gorm.DB) *AdminRepository {
	return &AdminRepository{db: database}
}

func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*db.Admin, error) {
	var a db.Admin
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
