package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ap2-gateway/internal/core/domain"
	"ap2-gateway/internal/core/ports"
	"ap2-gateway/pkg/apperror"
	"ap2-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Header names for signed merchant requests
	HeaderAPIKey    = "X-AP2-API-Key"
	HeaderSignature = "X-AP2-Signature"
	HeaderTimestamp = "X-AP2-Timestamp"

	// Max clock skew between signing and verification
	maxTimestampDrift = 5 * time.Minute

	// Context keys
	CtxRequestID  = "request_id"
	CtxMerchantID = "merchant_id"
	CtxMerchant   = "merchant"
	CtxUserID     = "user_id"
	CtxUserEmail  = "user_email"
)

// RequestID assigns every request a UUID and echoes it back in the
// X-Request-ID header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// APIKeyAuth authenticates merchant requests by API key and checks the
// account status. It attaches the merchant to the context; signature
// verification is a separate layer (SignatureAuth) so that management
// routes can require the key alone.
func APIKeyAuth(merchantRepo ports.MerchantRepository, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			response.Error(c, apperror.ErrMissingAPIKey())
			c.Abort()
			return
		}

		merchant, err := merchantRepo.GetByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			log.Error().Err(err).Msg("failed to fetch merchant")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if merchant == nil {
			response.Error(c, apperror.ErrInvalidAPIKey())
			c.Abort()
			return
		}
		if !merchant.IsActive() {
			response.Error(c, apperror.ErrMerchantSuspended(string(merchant.Status)))
			c.Abort()
			return
		}

		c.Set(CtxMerchantID, merchant.ID)
		c.Set(CtxMerchant, merchant)

		c.Next()

		// Only record activity once the rest of the chain accepted the
		// request; a rejected signature or stale timestamp aborts before
		// this runs and leaves lastActivityAt untouched.
		if !c.IsAborted() {
			if err := merchantRepo.TouchActivity(c.Request.Context(), merchant.ID, time.Now().UTC()); err != nil {
				log.Warn().Err(err).Msg("failed to touch merchant activity")
			}
		}
	}
}

// SignatureAuth verifies the HMAC signature over "<timestampMillis>.<body>"
// for gateway routes. Must run after APIKeyAuth. Timestamps older than the
// replay window are rejected before any signature work.
func SignatureAuth(encSvc ports.EncryptionService, sigSvc ports.SignatureService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(HeaderSignature)
		timestampStr := c.GetHeader(HeaderTimestamp)
		if signature == "" || timestampStr == "" {
			response.Error(c, apperror.ErrMissingSignature())
			c.Abort()
			return
		}

		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			response.Error(c, apperror.ErrExpiredRequest())
			c.Abort()
			return
		}
		drift := time.Since(time.UnixMilli(timestamp))
		if drift < 0 {
			drift = -drift
		}
		if drift > maxTimestampDrift {
			response.Error(c, apperror.ErrExpiredRequest())
			c.Abort()
			return
		}

		merchant, ok := MerchantFromContext(c)
		if !ok {
			response.Error(c, apperror.ErrInvalidAPIKey())
			c.Abort()
			return
		}

		secret, err := encSvc.Decrypt(merchant.APISecretEnc)
		if err != nil {
			log.Error().Err(err).Msg("failed to decrypt merchant secret")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		canonical := sigSvc.Canonical(timestamp, string(bodyBytes))
		if !sigSvc.Verify(secret, canonical, signature) {
			response.Error(c, apperror.ErrInvalidSignature())
			c.Abort()
			return
		}

		c.Next()
	}
}

// MerchantFromContext returns the authenticated merchant set by APIKeyAuth.
func MerchantFromContext(c *gin.Context) (*domain.Merchant, bool) {
	v, exists := c.Get(CtxMerchant)
	if !exists {
		return nil, false
	}
	m, ok := v.(*domain.Merchant)
	return m, ok
}

// JWTAuth validates Bearer tokens for user-facing mandate routes.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserEmail, claims.Email)
		c.Next()
	}
}

// RequestLogger logs every HTTP request with latency and status.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery converts panics into 500 responses.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": apperror.CodeInternal,
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// MaxBodySize limits the request body size. Oversized bodies fail the
// reader and the request is rejected.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
