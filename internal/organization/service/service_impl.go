package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	"github.com/smallbiznis/accounts/internal/clock"
	invitationdomain "github.com/smallbiznis/accounts/internal/invitation/domain"
	"github.com/smallbiznis/accounts/internal/organization/domain"
	"github.com/smallbiznis/accounts/internal/outbox"
	paymentdomain "github.com/smallbiznis/accounts/internal/payment/domain"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/smallbiznis/accounts/pkg/db/option"
	"github.com/smallbiznis/accounts/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxNameLength = 256

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Publisher outbox.Publisher    `optional:"true"`
	Audit     auditdomain.Service `optional:"true"`
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	publisher outbox.Publisher
	audit     auditdomain.Service

	orgrepo  repository.Repository[domain.Organization]
	userrepo repository.Repository[userdomain.User]
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("organization.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		publisher: p.Publisher,
		audit:     p.Audit,

		orgrepo:  repository.ProvideStore[domain.Organization](p.DB),
		userrepo: repository.ProvideStore[userdomain.User](p.DB),
	}
}

func (s *service) Create(ctx context.Context, ownerID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	if ownerID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, domain.ErrInvalidName
	}

	if _, err := s.userrepo.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidUser
		}
		return nil, err
	}

	orgID := s.genID.Generate()
	now := s.clock.Now()
	org := &domain.Organization{
		BaseRecord: repository.NewBaseRecord(orgID, now),
		Name:       name,
		OwnerID:    ownerID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgrepo := s.orgrepo.WithTrx(tx)

		org.Slug = slug.Make(name)
		if org.Slug == "" {
			org.Slug = orgID.Base36()
		}
		if _, err := orgrepo.FindOne(ctx, &domain.Organization{Slug: org.Slug}, option.IncludeDeleted()); err == nil {
			org.Slug = org.Slug + "-" + orgID.Base36()
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if err := orgrepo.Create(ctx, org); err != nil {
			return err
		}

		member := domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    ownerID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		}
		if err := s.repo.WithTx(tx).AddMember(ctx, member); err != nil {
			return err
		}

		if err := s.publish(ctx, tx, outbox.OrganizationCreatedTopic, orgID, map[string]any{
			"organization_id": orgID.String(),
			"owner_user_id":   ownerID.String(),
			"name":            name,
		}); err != nil {
			return err
		}
		return s.record(ctx, tx, "organization.created", orgID, map[string]any{"owner_id": ownerID.String()})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("organization_id", orgID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	return org, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*domain.Organization, error) {
	org, err := s.orgrepo.FindByID(ctx, id, option.WithDeleted(includeDeleted))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return org, nil
}

func (s *service) List(ctx context.Context, req domain.ListOrganizationRequest) (domain.ListOrganizationResponse, error) {
	var filter *domain.Organization
	if req.OwnerID != 0 {
		filter = &domain.Organization{OwnerID: req.OwnerID}
	}

	items, pageInfo, err := s.orgrepo.Page(ctx, filter, req.Pagination,
		option.WithDeleted(req.IncludeDeleted),
		option.Search(req.Search, "name"),
	)
	if err != nil {
		return domain.ListOrganizationResponse{}, err
	}

	orgs := make([]domain.Organization, 0, len(items))
	for _, item := range items {
		orgs = append(orgs, *item)
	}
	return domain.ListOrganizationResponse{PageInfo: *pageInfo, Organizations: orgs}, nil
}

func (s *service) Members(ctx context.Context, orgID snowflake.ID) ([]domain.MemberRow, error) {
	if _, err := s.GetByID(ctx, orgID, false); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, orgID)
}

func (s *service) AddMember(ctx context.Context, orgID, userID snowflake.ID, role string) error {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		role = domain.RoleMember
	}
	if !domain.ValidRole(role) {
		return domain.ErrInvalidRole
	}
	if _, err := s.GetByID(ctx, orgID, false); err != nil {
		return err
	}
	if _, err := s.userrepo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrInvalidUser
		}
		return err
	}

	exists, err := s.repo.IsMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrAlreadyMember
	}

	err = s.repo.AddMember(ctx, domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		CreatedAt: s.clock.Now(),
	})
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrAlreadyMember
	}
	return err
}

func (s *service) AdjustBalance(ctx context.Context, orgID snowflake.ID, delta int64) (*domain.Organization, error) {
	var org *domain.Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).AdjustBalance(ctx, orgID, delta)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrOrganizationNotFound
		}
		org, err = s.orgrepo.WithTrx(tx).FindByID(ctx, orgID)
		if err != nil {
			return err
		}
		return s.record(ctx, tx, "organization.balance_adjusted", orgID, map[string]any{
			"delta":   delta,
			"balance": org.Balance,
		})
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (s *service) Delete(ctx context.Context, id snowflake.ID, hard bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if hard {
			if err := tx.Where("org_id = ?", id).Delete(&invitationdomain.OrganizationInvite{}).Error; err != nil {
				return err
			}
			if err := tx.Where("org_id = ?", id).Delete(&paymentdomain.Payment{}).Error; err != nil {
				return err
			}
			if err := s.repo.WithTx(tx).DeleteMembersByOrg(ctx, id); err != nil {
				return err
			}
		}
		if err := s.orgrepo.WithTrx(tx).Delete(ctx, id, repository.DeleteModeFor(hard)); err != nil {
			return err
		}
		return s.record(ctx, tx, "organization.deleted", id, map[string]any{"hard": hard})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrOrganizationNotFound
	}
	return err
}

func (s *service) publish(ctx context.Context, tx *gorm.DB, topic string, id snowflake.ID, payload map[string]any) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.Publish(ctx, tx, topic, id, payload)
}

func (s *service) record(ctx context.Context, tx *gorm.DB, action string, id snowflake.ID, metadata map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, tx, auditdomain.Entry{
		Action:     action,
		TargetType: "organization",
		TargetID:   id.String(),
		Metadata:   metadata,
	})
}
