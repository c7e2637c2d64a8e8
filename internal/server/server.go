package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/accounts/internal/audit"
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	"github.com/smallbiznis/accounts/internal/authorization"
	"github.com/smallbiznis/accounts/internal/config"
	"github.com/smallbiznis/accounts/internal/invitation"
	invitationdomain "github.com/smallbiznis/accounts/internal/invitation/domain"
	"github.com/smallbiznis/accounts/internal/observability"
	obsmiddleware "github.com/smallbiznis/accounts/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/accounts/internal/observability/metrics"
	obstracing "github.com/smallbiznis/accounts/internal/observability/tracing"
	"github.com/smallbiznis/accounts/internal/organization"
	organizationdomain "github.com/smallbiznis/accounts/internal/organization/domain"
	"github.com/smallbiznis/accounts/internal/otp"
	otpdomain "github.com/smallbiznis/accounts/internal/otp/domain"
	"github.com/smallbiznis/accounts/internal/outbox"
	"github.com/smallbiznis/accounts/internal/payment"
	paymentdomain "github.com/smallbiznis/accounts/internal/payment/domain"
	"github.com/smallbiznis/accounts/internal/providers/email"
	"github.com/smallbiznis/accounts/internal/ratelimit"
	"github.com/smallbiznis/accounts/internal/user"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	audit.Module,
	outbox.Module,
	authorization.Module,
	email.Module,
	ratelimit.Module,
	user.Module,
	organization.Module,
	otp.Module,
	invitation.Module,
	payment.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Log:             log,
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		QuietRoutes:     []string{"/health", "/metrics"},
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	userSvc     userdomain.Service
	orgSvc      organizationdomain.Service
	otpSvc      otpdomain.Service
	inviteSvc   invitationdomain.Service
	paymentSvc  paymentdomain.Service
	auditSvc    auditdomain.Service
	authzSvc    authorization.Service
	limiter     ratelimit.Limiter
	obsMetrics  *obsmetrics.Metrics
	signupLimit ratelimit.Limit
	verifyLimit ratelimit.Limit
	loginLimit  ratelimit.Limit
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	UserSvc    userdomain.Service
	OrgSvc     organizationdomain.Service
	OTPSvc     otpdomain.Service
	InviteSvc  invitationdomain.Service
	PaymentSvc paymentdomain.Service
	AuditSvc   auditdomain.Service
	AuthzSvc   authorization.Service
	Limiter    ratelimit.Limiter   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	limiter := p.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		userSvc:     p.UserSvc,
		orgSvc:      p.OrgSvc,
		otpSvc:      p.OTPSvc,
		inviteSvc:   p.InviteSvc,
		paymentSvc:  p.PaymentSvc,
		auditSvc:    p.AuditSvc,
		authzSvc:    p.AuthzSvc,
		limiter:     limiter,
		obsMetrics:  p.ObsMetrics,
		signupLimit: ratelimit.Limit{Rate: 5.0 / 60.0, Burst: 5},
		verifyLimit: ratelimit.Limit{Rate: 10.0 / 60.0, Burst: 10},
		loginLimit:  ratelimit.Limit{Rate: 10.0 / 60.0, Burst: 10},
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/users", s.RateLimit("register", s.signupLimit), s.Register)
	api.POST("/otp", s.RateLimit("otp_request", s.loginLimit), s.RequestOTP)
	api.POST("/otp/verify", s.RateLimit("otp_verify", s.verifyLimit), s.VerifyOTP)
	api.POST("/invites/:id/accept", s.RateLimit("invite_accept", s.loginLimit), s.AcceptInvite)
	api.POST("/national-id/validate", s.ValidateNationalID)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminRequired())

	// -------- Users --------
	admin.GET("/users", s.authorize(authorization.ObjectUser, authorization.ActionView), s.ListUsers)
	admin.POST("/users", s.authorize(authorization.ObjectUser, authorization.ActionCreate), s.CreateUser)
	admin.POST("/users/superuser", s.authorize(authorization.ObjectUser, authorization.ActionCreate), s.CreateSuperuser)
	admin.GET("/users/:id", s.authorize(authorization.ObjectUser, authorization.ActionView), s.GetUser)
	admin.POST("/users/:id/password", s.authorize(authorization.ObjectUser, authorization.ActionUpdate), s.SetUserPassword)
	admin.DELETE("/users/:id", s.authorize(authorization.ObjectUser, authorization.ActionDelete), s.DeleteUser)

	// -------- Organizations --------
	admin.GET("/organizations", s.authorize(authorization.ObjectOrganization, authorization.ActionView), s.ListOrganizations)
	admin.POST("/organizations", s.authorize(authorization.ObjectOrganization, authorization.ActionCreate), s.CreateOrganization)
	admin.GET("/organizations/:id", s.authorize(authorization.ObjectOrganization, authorization.ActionView), s.GetOrganization)
	admin.DELETE("/organizations/:id", s.authorize(authorization.ObjectOrganization, authorization.ActionDelete), s.DeleteOrganization)
	admin.GET("/organizations/:id/members", s.authorize(authorization.ObjectOrganization, authorization.ActionView), s.ListOrganizationMembers)
	admin.POST("/organizations/:id/members", s.authorize(authorization.ObjectOrganization, authorization.ActionUpdate), s.AddOrganizationMember)
	admin.POST("/organizations/:id/balance", s.authorize(authorization.ObjectOrganization, authorization.ActionUpdate), s.AdjustOrganizationBalance)

	// -------- One-time passwords --------
	admin.GET("/otps", s.authorize(authorization.ObjectOTP, authorization.ActionView), s.ListOTPs)
	admin.GET("/otps/:id", s.authorize(authorization.ObjectOTP, authorization.ActionView), s.GetOTP)
	admin.DELETE("/otps/:id", s.authorize(authorization.ObjectOTP, authorization.ActionDelete), s.DeleteOTP)

	// -------- Invites --------
	admin.GET("/organization-invites", s.authorize(authorization.ObjectOrganizationInvite, authorization.ActionView), s.ListOrganizationInvites)
	admin.POST("/organization-invites", s.authorize(authorization.ObjectOrganizationInvite, authorization.ActionCreate), s.CreateOrganizationInvite)
	admin.GET("/organization-invites/:id", s.authorize(authorization.ObjectOrganizationInvite, authorization.ActionView), s.GetOrganizationInvite)
	admin.DELETE("/organization-invites/:id", s.authorize(authorization.ObjectOrganizationInvite, authorization.ActionDelete), s.DeleteOrganizationInvite)

	// -------- Payments --------
	admin.GET("/payments", s.authorize(authorization.ObjectPayment, authorization.ActionView), s.ListPayments)
	admin.POST("/payments", s.authorize(authorization.ObjectPayment, authorization.ActionCreate), s.CreatePayment)
	admin.GET("/payments/:id", s.authorize(authorization.ObjectPayment, authorization.ActionView), s.GetPayment)
	admin.DELETE("/payments/:id", s.authorize(authorization.ObjectPayment, authorization.ActionDelete), s.DeletePayment)
	admin.POST("/payments/:id/paid", s.authorize(authorization.ObjectPayment, authorization.ActionUpdate), s.MarkPaymentPaid)
	admin.POST("/payments/:id/cancel", s.authorize(authorization.ObjectPayment, authorization.ActionUpdate), s.CancelPayment)
	admin.GET("/payments/:id/receipt", s.authorize(authorization.ObjectPayment, authorization.ActionView), s.PaymentReceipt)

	// -------- Audit --------
	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
