package http

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/Morphiu/Squad-Yangu/internal/adapters/transport/http/dto"
	"github.com/Morphiu/Squad-Yangu/internal/adapters/transport/http/middleware"
	appsvc "github.com/Morphiu/Squad-Yangu/internal/app/auth/service"
	"github.com/Morphiu/Squad-Yangu/internal/domain/auth/model"
	applog "github.com/Morphiu/Squad-Yangu/internal/infra/log"
	"github.com/Morphiu/Squad-Yangu/internal/infra/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names a dependency for /health. A failing Critical check
// makes the service unavailable; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Pinger   Pinger
	Critical bool
}

type Handler struct {
	svc     appsvc.Service
	metrics *metrics.Metrics
	log     *zap.Logger
	checks  []HealthCheck
}

func NewHandler(svc appsvc.Service, m *metrics.Metrics, log *zap.Logger, checks []HealthCheck) *Handler {
	return &Handler{svc: svc, metrics: m, log: log, checks: checks}
}

func (h *Handler) observe(flow string, err error) {
	if h.metrics != nil {
		h.metrics.AuthEvent(flow, err)
	}
}

func bindJSON(c *gin.Context, body any) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func sessionResponse(s model.Session) dto.SessionResponse {
	return dto.SessionResponse{
		ID:             s.User.ID.String(),
		Username:       s.User.Username,
		Email:          s.User.Email,
		ProfilePicture: s.User.ProfilePicture,
		Token:          s.Token,
		ExpiresAt:      s.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func userResponse(u model.PublicUser) dto.UserResponse {
	return dto.UserResponse{
		ID:             u.ID.String(),
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		CreatedAt:      u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) Register(c *gin.Context) {
	var body dto.RegisterDTO
	if !bindJSON(c, &body) {
		return
	}
	h.log.Info("/auth/register", applog.Email("user", body.Email))

	sess, err := h.svc.Register(c.Request.Context(), body)
	h.observe("register", err)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, sessionResponse(sess))
}

func (h *Handler) Login(c *gin.Context) {
	var body dto.LoginDTO
	if !bindJSON(c, &body) {
		return
	}
	h.log.Info("/auth/login", applog.Email("user", body.Email))

	sess, err := h.svc.Login(c.Request.Context(), body)
	h.observe("login", err)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, sessionResponse(sess))
}

func (h *Handler) Profile(c *gin.Context) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "Not authorized, no token"})
		return
	}

	u, err := h.svc.Profile(c.Request.Context(), id)
	h.observe("profile", err)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, userResponse(u))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "Not authorized, no token"})
		return
	}
	var body dto.UpdateProfileDTO
	if !bindJSON(c, &body) {
		return
	}

	u, err := h.svc.UpdateProfile(c.Request.Context(), id, body)
	h.observe("update_profile", err)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    userResponse(u),
	})
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var body dto.ForgotPasswordDTO
	if !bindJSON(c, &body) {
		return
	}
	h.log.Info("/auth/forgot-password", applog.Email("user", body.Email))

	err := h.svc.ForgotPassword(c.Request.Context(), body)
	h.observe("forgot_password", err)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"message": "Password reset instructions have been sent to your email"})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var body dto.ResetPasswordDTO
	if !bindJSON(c, &body) {
		return
	}

	err := h.svc.ResetPassword(c.Request.Context(), body)
	h.observe("reset_password", err)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"message": "Password has been reset successfully"})
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	degraded := []string{}
	for _, check := range h.checks {
		if check.Pinger == nil {
			continue
		}
		err := check.Pinger.Ping(ctx)
		if err == nil {
			continue
		}
		h.log.Warn("health check failed",
			zap.String("dependency", check.Name), zap.Bool("critical", check.Critical), zap.Error(err))
		if check.Critical {
			c.JSON(nethttp.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependency": check.Name})
			return
		}
		degraded = append(degraded, check.Name)
	}

	if len(degraded) > 0 {
		c.JSON(nethttp.StatusOK, gin.H{"status": "degraded", "degraded": degraded, "time": time.Now().Unix()})
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
}
