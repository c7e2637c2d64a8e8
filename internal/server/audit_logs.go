package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/accounts/internal/audit/domain"
)

type listAuditLogsQuery struct {
	listQuery
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	// resource_* are accepted as aliases of target_*.
	ResourceType string `form:"resource_type"`
	ResourceID   string `form:"resource_id"`
	ActorType    string `form:"actor_type"`
	ActorID      string `form:"actor_id"`
	Since        string `form:"since"`
	Until        string `form:"until"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	since, err := parseOptionalTime("since", query.Since)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	until, err := parseOptionalTime("until", query.Until)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: query.pagination(),
		Action:     strings.TrimSpace(query.Action),
		TargetType: firstNonEmpty(query.TargetType, query.ResourceType),
		TargetID:   firstNonEmpty(query.TargetID, query.ResourceID),
		ActorType:  strings.ToLower(strings.TrimSpace(query.ActorType)),
		ActorID:    strings.TrimSpace(query.ActorID),
		Since:      since,
		Until:      until,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}

// parseOptionalTime accepts RFC 3339 timestamps or plain dates.
func parseOptionalTime(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, newValidationError(field, "invalid_"+field, field+" must be an RFC 3339 timestamp or a date")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
