package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	"github.com/smallbiznis/accounts/internal/clock"
	"github.com/smallbiznis/accounts/internal/config"
	"github.com/smallbiznis/accounts/internal/observability/metrics"
	organizationdomain "github.com/smallbiznis/accounts/internal/organization/domain"
	otpdomain "github.com/smallbiznis/accounts/internal/otp/domain"
	"github.com/smallbiznis/accounts/internal/password"
	paymentdomain "github.com/smallbiznis/accounts/internal/payment/domain"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/smallbiznis/accounts/pkg/db/option"
	"github.com/smallbiznis/accounts/pkg/nationalid"
	"github.com/smallbiznis/accounts/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxPhoneLength = 11

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Policy  *config.PolicyHolder
	OrgRepo organizationdomain.Repository
	Audit   auditdomain.Service `optional:"true"`
	Metrics *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	policy  *config.PolicyHolder
	orgRepo organizationdomain.Repository
	audit   auditdomain.Service
	metrics *metrics.Metrics

	userrepo repository.Repository[userdomain.User]
}

func NewService(p ServiceParam) userdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("user.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		policy:  p.Policy,
		orgRepo: p.OrgRepo,
		audit:   p.Audit,
		metrics: p.Metrics,

		userrepo: repository.ProvideStore[userdomain.User](p.DB),
	}
}

func (s *Service) CreateUser(ctx context.Context, req userdomain.CreateUserRequest) (*userdomain.User, error) {
	return s.create(ctx, req, "user")
}

func (s *Service) CreateSuperuser(ctx context.Context, req userdomain.CreateUserRequest) (*userdomain.User, error) {
	if req.IsStaff != nil && !*req.IsStaff {
		return nil, userdomain.ErrInvalidSuperuserFlags
	}
	if req.IsSuperuser != nil && !*req.IsSuperuser {
		return nil, userdomain.ErrInvalidSuperuserFlags
	}
	yes := true
	req.IsStaff = &yes
	req.IsSuperuser = &yes
	return s.create(ctx, req, "superuser")
}

func (s *Service) create(ctx context.Context, req userdomain.CreateUserRequest, kind string) (*userdomain.User, error) {
	email, err := userdomain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	if req.Password != "" {
		if err := password.CheckLength(req.Password, s.policy.Get().Password.MinLength); err != nil {
			return nil, userdomain.ErrInvalidPassword
		}
	}

	phone := strings.TrimSpace(req.PhoneNumber)
	if utf8.RuneCountInString(phone) > maxPhoneLength {
		return nil, userdomain.ErrInvalidPhoneNumber
	}

	nationalID := strings.TrimSpace(req.NationalID)
	if nationalID != "" {
		if err := nationalid.Validate(nationalID); err != nil {
			return nil, userdomain.ErrInvalidNationalID
		}
	}

	if _, err := s.userrepo.FindOne(ctx, &userdomain.User{Email: email}, option.IncludeDeleted()); err == nil {
		return nil, userdomain.ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &userdomain.User{
		BaseRecord:   repository.NewBaseRecord(s.genID.Generate(), s.clock.Now()),
		Email:        email,
		Username:     strings.TrimSpace(req.Username),
		PhoneNumber:  phone,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		NationalID:   nationalID,
		PasswordHash: hashed,
		IsStaff:      req.IsStaff != nil && *req.IsStaff,
		IsSuperuser:  req.IsSuperuser != nil && *req.IsSuperuser,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userrepo.WithTrx(tx).Create(ctx, user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return userdomain.ErrUserExists
			}
			return err
		}
		return s.record(ctx, tx, "user.created", user.ID, map[string]any{
			"kind":         kind,
			"is_staff":     user.IsStaff,
			"is_superuser": user.IsSuperuser,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUserCreated(ctx, kind)
	s.log.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("kind", kind),
	)
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, email, rawPassword string) (*userdomain.User, error) {
	normalized, err := userdomain.NormalizeEmail(email)
	if err != nil {
		return nil, userdomain.ErrInvalidCredentials
	}

	user, err := s.userrepo.FindOne(ctx, &userdomain.User{Email: normalized})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, userdomain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive || !password.Verify(rawPassword, user.PasswordHash) {
		return nil, userdomain.ErrInvalidCredentials
	}

	now := s.clock.Now()
	if err := s.userrepo.Update(ctx, user.ID, map[string]any{"last_login_at": now}); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*userdomain.User, error) {
	user, err := s.userrepo.FindByID(ctx, id, option.WithDeleted(includeDeleted))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, userdomain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	normalized, err := userdomain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.userrepo.FindOne(ctx, &userdomain.User{Email: normalized})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, userdomain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, req userdomain.ListUserRequest) (userdomain.ListUserResponse, error) {
	opts := []option.QueryOption{
		option.WithDeleted(req.IncludeDeleted),
		option.Search(req.Search, "email", "first_name", "last_name"),
	}

	items, pageInfo, err := s.userrepo.Page(ctx, nil, req.Pagination, opts...)
	if err != nil {
		return userdomain.ListUserResponse{}, err
	}

	users := make([]userdomain.User, 0, len(items))
	for _, item := range items {
		users = append(users, *item)
	}
	return userdomain.ListUserResponse{PageInfo: *pageInfo, Users: users}, nil
}

func (s *Service) SetPassword(ctx context.Context, id snowflake.ID, rawPassword string) error {
	if rawPassword != "" {
		if err := password.CheckLength(rawPassword, s.policy.Get().Password.MinLength); err != nil {
			return userdomain.ErrInvalidPassword
		}
	}
	hashed, err := password.Hash(rawPassword)
	if err != nil {
		return err
	}
	return s.update(ctx, id, map[string]any{"password_hash": hashed})
}

func (s *Service) MarkEmailVerified(ctx context.Context, id snowflake.ID) error {
	return s.update(ctx, id, map[string]any{"verified_email": true})
}

func (s *Service) MarkPhoneVerified(ctx context.Context, id snowflake.ID) error {
	return s.update(ctx, id, map[string]any{"verified_phone": true})
}

func (s *Service) update(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	if err := s.userrepo.Update(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return userdomain.ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID, hard bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.userrepo.WithTrx(tx).FindByID(ctx, id, option.WithDeleted(hard)); err != nil {
			return err
		}

		// A soft-deleted organization still references its owner, so it
		// blocks a physical delete but not a soft one.
		owned, err := s.orgRepo.WithTx(tx).CountOwnedBy(ctx, id, hard)
		if err != nil {
			return err
		}
		if owned > 0 {
			return userdomain.ErrOwnerProtected
		}

		if hard {
			if err := tx.Where("user_id = ?", id).Delete(&otpdomain.OneTimePassword{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", id).Delete(&paymentdomain.Payment{}).Error; err != nil {
				return err
			}
			if err := s.orgRepo.WithTx(tx).DeleteMembersByUser(ctx, id); err != nil {
				return err
			}
		}

		if err := s.userrepo.WithTrx(tx).Delete(ctx, id, repository.DeleteModeFor(hard)); err != nil {
			if hard && db.IsForeignKeyErr(err) {
				return userdomain.ErrOwnerProtected
			}
			return err
		}
		return s.record(ctx, tx, "user.deleted", id, map[string]any{"hard": hard})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return userdomain.ErrUserNotFound
	}
	return err
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, action string, id snowflake.ID, metadata map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, tx, auditdomain.Entry{
		Action:     action,
		TargetType: "user",
		TargetID:   id.String(),
		Metadata:   metadata,
	})
}
