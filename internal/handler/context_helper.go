package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/sgta/sgta-api/pkg/errors"
	"github.com/sgta/sgta-api/pkg/response"
)

// bindJSON decodes the request body into dest and renders a validation error on failure.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, invalidPayload(err))
		return false
	}
	return true
}

func invalidPayload(err error) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Kind, appErrors.ErrValidation.Status, "invalid payload")
}

// optionalBool parses a boolean query parameter. Absent or malformed values yield nil.
func optionalBool(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &val
}
