package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"startup-hub/apperrors"
	"startup-hub/constants"
)

// respondError answers {"error": ...} with the status of err's kind. The
// full error is attached to the context for the request log.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(apperrors.Status(err), gin.H{"error": apperrors.Message(err)})
}

// idParam parses a numeric path parameter. Malformed IDs read as not found.
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		respondError(c, &apperrors.Error{Kind: apperrors.KindNotFound, Message: constants.ErrNotFound})
		return 0, false
	}
	return uint(v), true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, apperrors.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, apperrors.Validation("invalid request body: %v", err))
		return false
	}
	return true
}
