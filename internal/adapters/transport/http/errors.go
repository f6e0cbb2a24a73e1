package http

import (
	nethttp "net/http"
	"strings"

	authErrors "github.com/Morphiu/Squad-Yangu/internal/domain/auth/errors"
	"github.com/gin-gonic/gin"
)

func handleError(c *gin.Context, err error) {
	switch {
	case authErrors.IsInvalidArgument(err):
		msg := strings.TrimPrefix(err.Error(), authErrors.ErrInvalidArgument.Error()+": ")
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": msg})
	case authErrors.IsAlreadyExists(err):
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "User already exists"})
	case authErrors.IsInvalidCredentials(err):
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case authErrors.IsInvalidToken(err):
		c.JSON(nethttp.StatusUnauthorized, gin.H{"error": "Not authorized, token failed"})
	case authErrors.IsNotFound(err):
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "User not found"})
	case authErrors.IsInvalidResetToken(err):
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
	case authErrors.IsTooManyRequests(err):
		c.JSON(nethttp.StatusTooManyRequests, gin.H{"error": "Too many reset requests, try again later"})
	case authErrors.IsEmailDelivery(err):
		_ = c.Error(err)
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "Email could not be sent"})
	default:
		_ = c.Error(err)
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
