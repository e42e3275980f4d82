package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/znapsite/platform/internal/tenant/domain"
	"github.com/znapsite/platform/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(conn *gorm.DB) tenantdomain.Repository {
	return &repo{db: conn}
}

func (r *repo) GetBySchema(ctx context.Context, schema string) (*tenantdomain.Tenant, error) {
	if !db.ValidSchemaName(schema) {
		return nil, tenantdomain.ErrInvalidTenantID
	}

	var tenant tenantdomain.Tenant
	err := r.db.WithContext(ctx).
		Where("schema_name = ?", schema).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tenantdomain.ErrTenantNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *repo) OwnerEmail(ctx context.Context, tenantID snowflake.ID) (string, error) {
	var email string
	err := r.db.WithContext(ctx).Raw(
		`SELECT email FROM users
		 WHERE tenant_id = ? AND role = 'owner'
		 ORDER BY created_at ASC
		 LIMIT 1`,
		tenantID,
	).Scan(&email).Error
	if err != nil {
		return "", err
	}
	return email, nil
}
