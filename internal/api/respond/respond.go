// Package respond defines the JSON envelope shared by every API endpoint.
//
// Success responses carry {"success": true, "message": ..., "data": ...};
// failures carry {"success": false, "message": ..., "code": ...} where code is
// a stable machine-readable string such as WORKSPACE_NOT_FOUND. Clients branch
// on code, humans read message.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the wire shape of every API response
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Common error codes reused across endpoints
const (
	CodeInternal     = "INTERNAL_ERROR"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "INSUFFICIENT_PERMISSIONS"
	CodeNotFound     = "NOT_FOUND"
)

// OK writes a 200 success envelope
func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 success envelope
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Error writes a failure envelope with the given status
func Error(c *gin.Context, status int, message, code string) {
	c.JSON(status, Envelope{Success: false, Message: message, Code: code})
}

// Internal writes a 500 failure envelope
func Internal(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message, CodeInternal)
}

// BadRequest writes a 400 validation failure
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message, CodeValidation)
}

// NotFound writes a 404 failure with a resource-specific code
func NotFound(c *gin.Context, message, code string) {
	Error(c, http.StatusNotFound, message, code)
}

// Forbidden writes a 403 failure
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, CodeForbidden)
}
