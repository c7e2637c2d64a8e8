package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
	obscontext "github.com/smallbiznis/accounts/internal/observability/context"
	otpdomain "github.com/smallbiznis/accounts/internal/otp/domain"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/nationalid"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	NationalID  string `json:"national_id"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	Email   string `json:"email"`
	Token   string `json:"token"`
	Channel string `json:"channel"`
}

type nationalIDRequest struct {
	NationalID string `json:"national_id"`
}

// Register creates a regular account. Staff flags cannot be set here.
func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.userSvc.CreateUser(c.Request.Context(), userdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		PhoneNumber: req.PhoneNumber,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		NationalID:  req.NationalID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": user})
}

// RequestOTP issues a fresh token to the authenticated user's email. The
// token itself is never part of the response.
func (s *Server) RequestOTP(c *gin.Context) {
	user, ok := s.authenticateBody(c)
	if !ok {
		return
	}

	result, err := s.otpSvc.Generate(c.Request.Context(), otpdomain.GenerateRequest{
		UserID:  user.ID,
		Deliver: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{
		"expiration_date": result.ExpirationDate,
		"delivered":       result.Delivered,
	}})
}

func (s *Server) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	channel := otpdomain.Channel(strings.ToLower(strings.TrimSpace(req.Channel)))
	if channel == "" {
		channel = otpdomain.ChannelEmail
	}

	user, err := s.userSvc.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		// unknown accounts look like a wrong token
		if errors.Is(err, userdomain.ErrUserNotFound) || errors.Is(err, userdomain.ErrInvalidEmail) {
			AbortWithError(c, otpdomain.ErrInvalidToken)
			return
		}
		AbortWithError(c, err)
		return
	}

	ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeUser), user.ID.String())
	if err := s.otpSvc.Verify(ctx, user.ID, strings.TrimSpace(req.Token), channel); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"verified": true, "channel": channel}})
}

func (s *Server) AcceptInvite(c *gin.Context) {
	inviteID, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	user, ok := s.authenticateBody(c)
	if !ok {
		return
	}

	invite, err := s.inviteSvc.Accept(c.Request.Context(), inviteID, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invite})
}

func (s *Server) ValidateNationalID(c *gin.Context) {
	var req nationalIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := nationalid.Validate(req.NationalID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"valid": true}})
}

// authenticateBody checks email and password from a JSON body and records
// the user as the request actor.
func (s *Server) authenticateBody(c *gin.Context) (*userdomain.User, bool) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return nil, false
	}

	user, err := s.userSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeUser), user.ID.String())
	c.Request = c.Request.WithContext(ctx)
	return user, true
}
