package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/accounts/pkg/db/pagination"
)

// listQuery holds the query parameters shared by every admin list view.
type listQuery struct {
	PageToken      string `form:"page_token"`
	PageSize       int    `form:"page_size"`
	IncludeDeleted string `form:"include_deleted"`
}

func (q listQuery) pagination() pagination.Pagination {
	return pagination.Pagination{
		PageToken: strings.TrimSpace(q.PageToken),
		PageSize:  q.PageSize,
	}
}

func (q listQuery) includeDeleted() (bool, error) {
	parsed, err := parseOptionalBool(q.IncludeDeleted)
	if err != nil {
		return false, newValidationError("include_deleted", "invalid_include_deleted", "include_deleted must be a boolean")
	}
	return parsed != nil && *parsed, nil
}

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return nil, ErrInvalidRequest
	}
	return &parsed, nil
}

// filterID parses an optional id filter; zero means no filter.
func filterID(field, value string) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(value)
	if err != nil {
		return 0, newValidationError(field, "invalid_"+field, field+" must be a numeric id")
	}
	if id == nil {
		return 0, nil
	}
	return *id, nil
}

func pathID(c *gin.Context) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(c.Param("id"))
	if err != nil || id == nil {
		return 0, ErrNotFound
	}
	return *id, nil
}

func includeDeletedParam(c *gin.Context) (bool, error) {
	return listQuery{IncludeDeleted: c.Query("include_deleted")}.includeDeleted()
}

func hardDeleteParam(c *gin.Context) (bool, error) {
	parsed, err := parseOptionalBool(c.Query("hard"))
	if err != nil {
		return false, newValidationError("hard", "invalid_hard", "hard must be a boolean")
	}
	return parsed != nil && *parsed, nil
}
