package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/accounts/internal/organization/domain"
)

type listOrganizationsQuery struct {
	listQuery
	Q       string `form:"q"`
	OwnerID string `form:"owner_id"`
}

type createOrganizationRequest struct {
	Name    string       `json:"name"`
	OwnerID snowflake.ID `json:"owner_id"`
}

type addMemberRequest struct {
	UserID snowflake.ID `json:"user_id"`
	Role   string       `json:"role"`
}

type adjustBalanceRequest struct {
	Delta int64 `json:"delta"`
}

func (s *Server) ListOrganizations(c *gin.Context) {
	var query listOrganizationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	includeDeleted, err := query.includeDeleted()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ownerID, err := filterID("owner_id", query.OwnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.orgSvc.List(c.Request.Context(), organizationdomain.ListOrganizationRequest{
		Pagination:     query.pagination(),
		Search:         strings.TrimSpace(query.Q),
		OwnerID:        ownerID,
		IncludeDeleted: includeDeleted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Organizations, "page_info": resp.PageInfo})
}

func (s *Server) CreateOrganization(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.orgSvc.Create(c.Request.Context(), req.OwnerID, organizationdomain.CreateOrganizationRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": org})
}

func (s *Server) GetOrganization(c *gin.Context) {
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

	org, err := s.orgSvc.GetByID(c.Request.Context(), id, includeDeleted)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}

func (s *Server) DeleteOrganization(c *gin.Context) {
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

	if err := s.orgSvc.Delete(c.Request.Context(), id, hard); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListOrganizationMembers(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	members, err := s.orgSvc.Members(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (s *Server) AddOrganizationMember(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = organizationdomain.RoleMember
	}

	if err := s.orgSvc.AddMember(c.Request.Context(), id, req.UserID, role); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AdjustOrganizationBalance(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req adjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.orgSvc.AdjustBalance(c.Request.Context(), id, req.Delta)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}
