package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	otpdomain "github.com/smallbiznis/accounts/internal/otp/domain"
)

type listOTPsQuery struct {
	listQuery
	UserID string `form:"user_id"`
}

// ListOTPs never returns token values.
func (s *Server) ListOTPs(c *gin.Context) {
	var query listOTPsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	includeDeleted, err := query.includeDeleted()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	userID, err := filterID("user_id", query.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.otpSvc.List(c.Request.Context(), otpdomain.ListOTPRequest{
		Pagination:     query.pagination(),
		UserID:         userID,
		IncludeDeleted: includeDeleted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.OTPs, "page_info": resp.PageInfo})
}

func (s *Server) GetOTP(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	includeDeleted, err := includeDeletedParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	otp, err := s.otpSvc.GetByID(c.Request.Context(), id, includeDeleted)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": otp})
}

func (s *Server) DeleteOTP(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	hard, err := hardDeleteParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.otpSvc.Delete(c.Request.Context(), id, hard); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
