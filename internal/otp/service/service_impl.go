package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	"github.com/smallbiznis/accounts/internal/clock"
	"github.com/smallbiznis/accounts/internal/config"
	"github.com/smallbiznis/accounts/internal/observability/metrics"
	"github.com/smallbiznis/accounts/internal/otp/domain"
	"github.com/smallbiznis/accounts/internal/providers/email"
	"github.com/smallbiznis/accounts/internal/ratelimit"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db"
	"github.com/smallbiznis/accounts/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Policy  *config.PolicyHolder
	Repo    domain.Repository
	Limiter ratelimit.Limiter   `optional:"true"`
	Email   email.Provider      `optional:"true"`
	Audit   auditdomain.Service `optional:"true"`
	Metrics *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	policy  *config.PolicyHolder
	repo    domain.Repository
	limiter ratelimit.Limiter
	email   email.Provider
	audit   auditdomain.Service
	metrics *metrics.Metrics

	userrepo repository.Repository[userdomain.User]
}

func NewService(p ServiceParam) domain.Service {
	limiter := p.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("otp.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		policy:  p.Policy,
		repo:    p.Repo,
		limiter: limiter,
		email:   p.Email,
		audit:   p.Audit,
		metrics: p.Metrics,

		userrepo: repository.ProvideStore[userdomain.User](p.DB),
	}
}

func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	user, err := s.userrepo.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidUser
		}
		return nil, err
	}

	policy := s.policy.Get().OTP
	limit := ratelimit.Limit{Rate: policy.RateLimit.Rate, Burst: policy.RateLimit.Burst}
	res, err := s.limiter.Allow(ctx, "otp:"+user.ID.String(), limit)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		s.metrics.RecordRateLimitDenied(ctx, "otp.generate")
		s.log.Warn("otp generation rate limited",
			zap.String("user_id", user.ID.String()),
			zap.Duration("retry_after", res.RetryAfter),
		)
		return nil, domain.ErrRateLimited
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = policy.TTL()
	}

	token, err := newToken(domain.TokenLength)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	otp := &domain.OneTimePassword{
		BaseRecord:     repository.NewBaseRecord(s.genID.Generate(), now),
		UserID:         user.ID,
		Token:          token,
		ExpirationDate: now.Add(ttl),
	}

	err = s.replace(ctx, otp)
	if db.IsDuplicateKeyErr(err) {
		// A concurrent Generate for the same user inserted first.
		err = s.replace(ctx, otp)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOTPGenerated(ctx)

	result := &domain.GenerateResult{Token: token, ExpirationDate: otp.ExpirationDate}
	if req.Deliver || policy.DeliverByEmail {
		result.Delivered = s.deliver(ctx, user, otp)
	}
	return result, nil
}

func (s *Service) replace(ctx context.Context, otp *domain.OneTimePassword) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Replace(ctx, otp); err != nil {
			return err
		}
		return s.record(ctx, tx, "otp.generated", otp.UserID, map[string]any{
			"otp_id":          otp.ID.String(),
			"expiration_date": otp.ExpirationDate,
		})
	})
}

func (s *Service) deliver(ctx context.Context, user *userdomain.User, otp *domain.OneTimePassword) bool {
	if s.email == nil {
		return false
	}
	err := s.email.SendTemplate(ctx, []string{user.Email}, email.TemplateOTPCode, map[string]any{
		"name":       user.String(),
		"token":      otp.Token,
		"expires_at": otp.ExpirationDate.Format(time.RFC1123),
	})
	if err != nil {
		s.log.Warn("otp delivery failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) Validate(ctx context.Context, userID snowflake.ID, token string) (bool, error) {
	ok, err := s.validate(ctx, s.repo, userID, token)
	if err != nil {
		return false, err
	}
	s.metrics.RecordOTPValidated(ctx, ok)
	return ok, nil
}

func (s *Service) validate(ctx context.Context, repo domain.Repository, userID snowflake.ID, token string) (bool, error) {
	if userID == 0 || len(token) != domain.TokenLength {
		return false, nil
	}

	otp, err := repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrOTPNotFound) {
			return false, nil
		}
		return false, err
	}

	match := subtle.ConstantTimeCompare([]byte(otp.Token), []byte(token)) == 1
	return match && !otp.IsExpired(s.clock.Now()), nil
}

func (s *Service) Verify(ctx context.Context, userID snowflake.ID, token string, channel domain.Channel) error {
	var column string
	switch channel {
	case domain.ChannelEmail:
		column = "verified_email"
	case domain.ChannelPhone:
		column = "verified_phone"
	default:
		return domain.ErrInvalidChannel
	}

	var valid bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := s.validate(ctx, repo, userID, token)
		if err != nil {
			return err
		}
		valid = ok
		if !ok {
			return domain.ErrInvalidToken
		}

		if err := repo.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.userrepo.WithTrx(tx).Update(ctx, userID, map[string]any{column: true}); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrInvalidUser
			}
			return err
		}
		return s.record(ctx, tx, "otp.verified", userID, map[string]any{"channel": string(channel)})
	})
	s.metrics.RecordOTPValidated(ctx, valid)
	return err
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*domain.OneTimePassword, error) {
	return s.repo.FindByID(ctx, id, includeDeleted)
}

func (s *Service) List(ctx context.Context, req domain.ListOTPRequest) (domain.ListOTPResponse, error) {
	items, pageInfo, err := s.repo.List(ctx, req.UserID, req.IncludeDeleted, req.Pagination)
	if err != nil {
		return domain.ListOTPResponse{}, err
	}

	otps := make([]domain.OneTimePassword, 0, len(items))
	for _, item := range items {
		otps = append(otps, *item)
	}
	return domain.ListOTPResponse{PageInfo: *pageInfo, OTPs: otps}, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID, hard bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		otp, err := repo.FindByID(ctx, id, hard)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id, repository.DeleteModeFor(hard)); err != nil {
			return err
		}
		return s.record(ctx, tx, "otp.deleted", otp.UserID, map[string]any{
			"otp_id": id.String(),
			"hard":   hard,
		})
	})
}

func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration, limit int) (int64, error) {
	if retention < 0 {
		retention = 0
	}
	purged, err := s.repo.PurgeExpired(ctx, s.clock.Now().Add(-retention), limit)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.log.Info("purged expired otps", zap.Int64("count", purged))
	}
	return purged, nil
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, action string, userID snowflake.ID, metadata map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, tx, auditdomain.Entry{
		Action:     action,
		TargetType: "user",
		TargetID:   userID.String(),
		Metadata:   metadata,
	})
}

// newToken draws n decimal digits from crypto/rand. Bytes at or above 250
// are rejected so every digit stays uniform.
func newToken(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
