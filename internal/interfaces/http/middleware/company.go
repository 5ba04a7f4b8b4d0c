package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CompanyIDKey is the gin context key under which the issuing company id
// is stored for the duration of a request.
const CompanyIDKey = "company_id"

// CompanyHeader is the HTTP header carrying the issuing company id in
// multi-company deployments. Single-company deployments omit it and the
// services fall back to the configured company.
const CompanyHeader = "X-Company-ID"

// CompanyContext extracts the issuing company id from the X-Company-ID
// header and stores it in the gin context. Invalid values are ignored
// rather than rejected: company resolution happens in the application
// layer, which reports UNKNOWN_COMPANY with proper error envelopes.
func CompanyContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(CompanyHeader); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				c.Set(CompanyIDKey, id.String())
			}
		}
		c.Next()
	}
}

// GetCompanyID returns the validated company id from the gin context,
// or an empty string when the request did not carry one.
func GetCompanyID(c *gin.Context) string {
	if v, exists := c.Get(CompanyIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// CompanyUUID returns the company id as a *uuid.UUID suitable for the
// application services' CompanyProvider, nil when absent.
func CompanyUUID(c *gin.Context) *uuid.UUID {
	raw := GetCompanyID(c)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
