package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	"github.com/smallbiznis/accounts/internal/clock"
	"github.com/smallbiznis/accounts/internal/invitation/domain"
	organizationdomain "github.com/smallbiznis/accounts/internal/organization/domain"
	"github.com/smallbiznis/accounts/internal/outbox"
	"github.com/smallbiznis/accounts/internal/providers/email"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db/option"
	"github.com/smallbiznis/accounts/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	OrgRepo   organizationdomain.Repository
	Publisher outbox.Publisher    `optional:"true"`
	Email     email.Provider      `optional:"true"`
	Audit     auditdomain.Service `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	orgRepo   organizationdomain.Repository
	publisher outbox.Publisher
	email     email.Provider
	audit     auditdomain.Service

	inviterepo repository.Repository[domain.OrganizationInvite]
	orgrepo    repository.Repository[organizationdomain.Organization]
	userrepo   repository.Repository[userdomain.User]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invitation.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		orgRepo:   p.OrgRepo,
		publisher: p.Publisher,
		email:     p.Email,
		audit:     p.Audit,

		inviterepo: repository.ProvideStore[domain.OrganizationInvite](p.DB),
		orgrepo:    repository.ProvideStore[organizationdomain.Organization](p.DB),
		userrepo:   repository.ProvideStore[userdomain.User](p.DB),
	}
}

func (s *Service) Invite(ctx context.Context, req domain.InviteRequest) (*domain.OrganizationInvite, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	addr, err := userdomain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}

	org, err := s.orgrepo.FindByID(ctx, req.OrgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidOrganization
		}
		return nil, err
	}

	if req.InvitedBy != nil {
		if _, err := s.userrepo.FindByID(ctx, *req.InvitedBy); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, domain.ErrInvalidUser
			}
			return nil, err
		}
	}

	invite := &domain.OrganizationInvite{
		BaseRecord: repository.NewBaseRecord(s.genID.Generate(), s.clock.Now()),
		OrgID:      org.ID,
		Email:      addr,
		Status:     domain.StatusPending,
		InvitedBy:  req.InvitedBy,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.inviterepo.WithTrx(tx).Create(ctx, invite); err != nil {
			return err
		}
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, tx, outbox.InviteCreatedTopic, invite.ID, map[string]any{
				"invite_id":       invite.ID.String(),
				"organization_id": org.ID.String(),
				"email":           addr,
			}); err != nil {
				return err
			}
		}
		return s.record(ctx, tx, "invite.created", invite.ID, map[string]any{
			"organization_id": org.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.email != nil {
		if err := s.email.SendTemplate(ctx, []string{addr}, email.TemplateInviteMember, map[string]any{
			"org_name":  org.Name,
			"invite_id": invite.ID.String(),
		}); err != nil {
			s.log.Warn("invite email failed",
				zap.String("invite_id", invite.ID.String()),
				zap.Error(err),
			)
		}
	}

	return invite, nil
}

func (s *Service) Accept(ctx context.Context, inviteID, userID snowflake.ID) (*domain.OrganizationInvite, error) {
	var invite *domain.OrganizationInvite
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inviterepo := s.inviterepo.WithTrx(tx)

		found, err := inviterepo.FindByID(ctx, inviteID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrInviteNotFound
			}
			return err
		}
		if found.Status != domain.StatusPending {
			return domain.ErrInviteNotPending
		}

		user, err := s.userrepo.WithTrx(tx).FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrInvalidUser
			}
			return err
		}
		if !strings.EqualFold(user.Email, found.Email) {
			return domain.ErrInviteEmailMismatch
		}

		if _, err := s.orgrepo.WithTrx(tx).FindByID(ctx, found.OrgID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrInvalidOrganization
			}
			return err
		}

		if err := inviterepo.Update(ctx, found.ID, map[string]any{"status": domain.StatusAccepted}); err != nil {
			return err
		}

		orgRepo := s.orgRepo.WithTx(tx)
		member, err := orgRepo.IsMember(ctx, found.OrgID, user.ID)
		if err != nil {
			return err
		}
		if !member {
			err := orgRepo.AddMember(ctx, organizationdomain.OrganizationMember{
				ID:        s.genID.Generate(),
				OrgID:     found.OrgID,
				UserID:    user.ID,
				Role:      organizationdomain.RoleMember,
				CreatedAt: s.clock.Now(),
			})
			if err != nil {
				return err
			}
		}

		found.Status = domain.StatusAccepted
		invite = found
		return s.record(ctx, tx, "invite.accepted", found.ID, map[string]any{
			"organization_id": found.OrgID.String(),
			"user_id":         user.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*domain.OrganizationInvite, error) {
	invite, err := s.inviterepo.FindByID(ctx, id, option.WithDeleted(includeDeleted))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, err
	}
	return invite, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInviteRequest) (domain.ListInviteResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListInviteResponse{}, domain.ErrInvalidStatus
	}

	filter := &domain.OrganizationInvite{
		OrgID:  req.OrgID,
		Status: req.Status,
	}
	if addr := strings.TrimSpace(req.Email); addr != "" {
		if normalized, err := userdomain.NormalizeEmail(addr); err == nil {
			addr = normalized
		}
		filter.Email = addr
	}

	items, pageInfo, err := s.inviterepo.Page(ctx, filter, req.Pagination, option.WithDeleted(req.IncludeDeleted))
	if err != nil {
		return domain.ListInviteResponse{}, err
	}

	invites := make([]domain.OrganizationInvite, 0, len(items))
	for _, item := range items {
		invites = append(invites, *item)
	}
	return domain.ListInviteResponse{PageInfo: *pageInfo, Invites: invites}, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID, hard bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.inviterepo.WithTrx(tx).Delete(ctx, id, repository.DeleteModeFor(hard)); err != nil {
			return err
		}
		return s.record(ctx, tx, "invite.deleted", id, map[string]any{"hard": hard})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrInviteNotFound
	}
	return err
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, action string, id snowflake.ID, metadata map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, tx, auditdomain.Entry{
		Action:     action,
		TargetType: "organization_invite",
		TargetID:   id.String(),
		Metadata:   metadata,
	})
}
