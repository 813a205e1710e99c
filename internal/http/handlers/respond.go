package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FieldError is one entry of a validation failure response. The client
// matches Field against its form controls to surface messages inline.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondSuccess(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{
		"success": true,
		"message": message,
	})
}

// RespondFieldErrors reports every violated field together; validation is
// never fail-fast in this API.
func RespondFieldErrors(ctx *gin.Context, fields []FieldError) {
	ctx.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"errors":  fields,
	})
}

func RespondFailure(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondFailure(ctx, http.StatusUnauthorized, message)
}

func RespondForbidden(ctx *gin.Context) {
	RespondFailure(ctx, http.StatusForbidden, "Forbidden")
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondFailure(ctx, http.StatusNotFound, message)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondFailure(ctx, http.StatusInternalServerError, message)
}
