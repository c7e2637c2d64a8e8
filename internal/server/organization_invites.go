package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invitationdomain "github.com/smallbiznis/accounts/internal/invitation/domain"
)

type listInvitesQuery struct {
	listQuery
	OrgID  string `form:"org_id"`
	Email  string `form:"email"`
	Status string `form:"status"`
}

type createInviteRequest struct {
	OrgID snowflake.ID `json:"org_id"`
	Email string       `json:"email"`
}

func (s *Server) ListOrganizationInvites(c *gin.Context) {
	var query listInvitesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	includeDeleted, err := query.includeDeleted()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	orgID, err := filterID("org_id", query.OrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.inviteSvc.List(c.Request.Context(), invitationdomain.ListInviteRequest{
		Pagination:     query.pagination(),
		OrgID:          orgID,
		Email:          strings.TrimSpace(query.Email),
		Status:         invitationdomain.InvitationStatus(strings.ToLower(strings.TrimSpace(query.Status))),
		IncludeDeleted: includeDeleted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invites, "page_info": resp.PageInfo})
}

// CreateOrganizationInvite records the calling admin as the inviter.
func (s *Server) CreateOrganizationInvite(c *gin.Context) {
	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inviteReq := invitationdomain.InviteRequest{
		OrgID: req.OrgID,
		Email: req.Email,
	}
	if admin, ok := adminFromContext(c); ok {
		invitedBy := admin.ID
		inviteReq.InvitedBy = &invitedBy
	}

	invite, err := s.inviteSvc.Invite(c.Request.Context(), inviteReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invite})
}

func (s *Server) GetOrganizationInvite(c *gin.Context) {
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

	invite, err := s.inviteSvc.GetByID(c.Request.Context(), id, includeDeleted)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invite})
}

func (s *Server) DeleteOrganizationInvite(c *gin.Context) {
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

	if err := s.inviteSvc.Delete(c.Request.Context(), id, hard); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
