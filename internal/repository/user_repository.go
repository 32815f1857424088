package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/opendesk/chat-core/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.ChatUser, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*domain.ChatUser, error)
	Create(ctx context.Context, u *domain.ChatUser) error
	UpdateStatus(ctx context.Context, tenantID, id, status string) error
	ListByTenant(ctx context.Context, tenantID string) ([]domain.ChatUser, error)
}

type mysqlUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &mysqlUserRepository{db: db}
}

func (r *mysqlUserRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.ChatUser, error) {
	var u domain.ChatUser
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *mysqlUserRepository) GetByEmail(ctx context.Context, tenantID, email string) (*domain.ChatUser, error) {
	var u domain.ChatUser
	err := r.db.WithContext(ctx).
		Where("email = ? AND tenant_id = ?", email, tenantID).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *mysqlUserRepository) Create(ctx context.Context, u *domain.ChatUser) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *mysqlUserRepository) UpdateStatus(ctx context.Context, tenantID, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&domain.ChatUser{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("status", status).Error
}

func (r *mysqlUserRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.ChatUser, error) {
	var users []domain.ChatUser
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("first_name ASC").
		Find(&users).Error
	return users, err
}
