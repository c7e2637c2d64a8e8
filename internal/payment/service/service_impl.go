package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	"github.com/smallbiznis/accounts/internal/clock"
	"github.com/smallbiznis/accounts/internal/observability/metrics"
	organizationdomain "github.com/smallbiznis/accounts/internal/organization/domain"
	"github.com/smallbiznis/accounts/internal/outbox"
	"github.com/smallbiznis/accounts/internal/payment/domain"
	"github.com/smallbiznis/accounts/internal/providers/pdf"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db/option"
	"github.com/smallbiznis/accounts/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	OrgRepo   organizationdomain.Repository
	PDF       pdf.Provider        `optional:"true"`
	Publisher outbox.Publisher    `optional:"true"`
	Audit     auditdomain.Service `optional:"true"`
	Metrics   *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	orgRepo   organizationdomain.Repository
	pdf       pdf.Provider
	publisher outbox.Publisher
	audit     auditdomain.Service
	metrics   *metrics.Metrics

	paymentrepo repository.Repository[domain.Payment]
	orgrepo     repository.Repository[organizationdomain.Organization]
	userrepo    repository.Repository[userdomain.User]
}

func NewService(p ServiceParam) domain.Service {
	renderer := p.PDF
	if renderer == nil {
		renderer = pdf.New()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		orgRepo:   p.OrgRepo,
		pdf:       renderer,
		publisher: p.Publisher,
		audit:     p.Audit,
		metrics:   p.Metrics,

		paymentrepo: repository.ProvideStore[domain.Payment](p.DB),
		orgrepo:     repository.ProvideStore[organizationdomain.Organization](p.DB),
		userrepo:    repository.ProvideStore[userdomain.User](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePaymentRequest) (*domain.Payment, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	if _, err := s.orgrepo.FindByID(ctx, req.OrgID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidOrganization
		}
		return nil, err
	}
	if req.UserID != nil {
		if _, err := s.userrepo.FindByID(ctx, *req.UserID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, domain.ErrInvalidUser
			}
			return nil, err
		}
	}

	authority := datatypes.JSONMap{}
	for k, v := range req.AuthorityData {
		authority[k] = v
	}

	payment := &domain.Payment{
		BaseRecord:    repository.NewBaseRecord(s.genID.Generate(), s.clock.Now()),
		OrgID:         req.OrgID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Status:        domain.StatusPending,
		AuthorityData: authority,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentrepo.WithTrx(tx).Create(ctx, payment); err != nil {
			return err
		}
		return s.record(ctx, tx, "payment.created", payment.ID, map[string]any{
			"organization_id": payment.OrgID.String(),
			"amount":          payment.Amount,
			"authority_data":  map[string]any(authority),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("organization_id", payment.OrgID.String()),
		zap.Int64("amount", payment.Amount),
	)
	return payment, nil
}

func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID, authorityData map[string]any) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paymentrepo := s.paymentrepo.WithTrx(tx)

		found, err := paymentrepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if found.Status != domain.StatusPending {
			return domain.ErrInvalidTransition
		}

		authority := datatypes.JSONMap{}
		for k, v := range found.AuthorityData {
			authority[k] = v
		}
		for k, v := range authorityData {
			authority[k] = v
		}

		if err := s.transition(ctx, tx, id, domain.StatusPaid, map[string]any{
			"authority_data": authority,
		}); err != nil {
			return err
		}

		ok, err := s.orgRepo.WithTx(tx).AdjustBalance(ctx, found.OrgID, found.Amount)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidOrganization
		}

		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, tx, outbox.PaymentPaidTopic, id, map[string]any{
				"payment_id":      id.String(),
				"organization_id": found.OrgID.String(),
				"amount":          found.Amount,
			}); err != nil {
				return err
			}
		}

		payment, err = paymentrepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		return s.record(ctx, tx, "payment.paid", id, map[string]any{
			"organization_id": found.OrgID.String(),
			"amount":          found.Amount,
			"authority_data":  map[string]any(authority),
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	s.metrics.RecordPaymentPaid(ctx)
	return payment, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		paymentrepo := s.paymentrepo.WithTrx(tx)

		found, err := paymentrepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if found.Status != domain.StatusPending {
			return domain.ErrInvalidTransition
		}
		if err := s.transition(ctx, tx, id, domain.StatusCanceled, nil); err != nil {
			return err
		}

		payment, err = paymentrepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		return s.record(ctx, tx, "payment.canceled", id, nil)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// transition moves a pending payment to status. The status check is part of
// the UPDATE so a concurrent transition committed after our read wins.
func (s *Service) transition(ctx context.Context, tx *gorm.DB, id snowflake.ID, status domain.Status, fields map[string]any) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": s.clock.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	res := tx.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, domain.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID, includeDeleted bool) (*domain.Payment, error) {
	payment, err := s.paymentrepo.FindByID(ctx, id, option.WithDeleted(includeDeleted))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPaymentRequest) (domain.ListPaymentResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListPaymentResponse{}, domain.ErrInvalidStatus
	}

	filter := &domain.Payment{OrgID: req.OrgID, Status: req.Status}
	if req.UserID != 0 {
		userID := req.UserID
		filter.UserID = &userID
	}

	items, pageInfo, err := s.paymentrepo.Page(ctx, filter, req.Pagination, option.WithDeleted(req.IncludeDeleted))
	if err != nil {
		return domain.ListPaymentResponse{}, err
	}

	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		payments = append(payments, *item)
	}
	return domain.ListPaymentResponse{PageInfo: *pageInfo, Payments: payments}, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID, hard bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentrepo.WithTrx(tx).Delete(ctx, id, repository.DeleteModeFor(hard)); err != nil {
			return err
		}
		return s.record(ctx, tx, "payment.deleted", id, map[string]any{"hard": hard})
	})
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrPaymentNotFound
	}
	return err
}

func (s *Service) Receipt(ctx context.Context, id snowflake.ID) ([]byte, error) {
	payment, err := s.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.StatusPaid {
		return nil, domain.ErrNotPaid
	}

	org, err := s.orgrepo.FindByID(ctx, payment.OrgID, option.IncludeDeleted())
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}

	data := pdf.ReceiptData{
		PaymentID:    payment.ID.String(),
		PaymentUUID:  payment.UUID.String(),
		OrgName:      org.Name,
		OrgSlug:      org.Slug,
		Amount:       payment.Amount,
		DatePaid:     payment.UpdatedAt.UTC().Format(time.DateOnly),
		AuthorityRef: authorityRef(payment.AuthorityData),
	}
	if payment.UserID != nil {
		if user, err := s.userrepo.FindByID(ctx, *payment.UserID, option.IncludeDeleted()); err == nil {
			data.PayerName = user.FullName()
			data.PayerEmail = user.Email
		}
	}

	return s.pdf.Receipt(ctx, data)
}

func authorityRef(data datatypes.JSONMap) string {
	for _, key := range []string{"authority", "ref", "reference"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, action string, id snowflake.ID, metadata map[string]any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, tx, auditdomain.Entry{
		Action:     action,
		TargetType: "payment",
		TargetID:   id.String(),
		Metadata:   metadata,
	})
}
