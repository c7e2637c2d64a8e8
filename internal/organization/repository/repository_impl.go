package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/accounts/internal/organization/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *repository) IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberRow, error) {
	var items []domain.MemberRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT u.id AS user_id, u.email, u.first_name, u.last_name, m.role
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = ? AND u.deleted_at IS NULL
		 ORDER BY m.created_at ASC, m.id ASC`,
		orgID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteMembersByOrg(ctx context.Context, orgID snowflake.ID) error {
	return r.db.WithContext(ctx).Where("org_id = ?", orgID).Delete(&domain.OrganizationMember{}).Error
}

func (r *repository) DeleteMembersByUser(ctx context.Context, userID snowflake.ID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.OrganizationMember{}).Error
}

func (r *repository) AdjustBalance(ctx context.Context, orgID snowflake.ID, delta int64) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ? AND deleted_at IS NULL", orgID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": r.db.NowFunc(),
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *repository) CountOwnedBy(ctx context.Context, userID snowflake.ID, includeDeleted bool) (int64, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Organization{}).Where("owner_id = ?", userID)
	if !includeDeleted {
		stmt = stmt.Where("deleted_at IS NULL")
	}
	var count int64
	err := stmt.Count(&count).Error
	return count, err
}
