package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/trivia-api/internal/domain/entity"
	"github.com/yourusername/trivia-api/internal/domain/repository"
	"github.com/yourusername/trivia-api/internal/service"
	"github.com/yourusername/trivia-api/pkg/auth"
)

const refreshCookieName = "refresh_token"

// AuthHandler implements the OTP phone-verification flow (§6): register
// sends a code, verify-otp exchanges a valid code for a session, refresh
// rotates the long-lived cookie. There is no password in this system —
// identity is phoneNumber plus whatever the current OTP round proves.
type AuthHandler struct {
	otpService *service.OTPService
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
}

func NewAuthHandler(otpService *service.OTPService, userRepo repository.UserRepository, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{otpService: otpService, userRepo: userRepo, jwtService: jwtService}
}

type registerRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	OTP         string `json:"otp" binding:"required"`
	Username    string `json:"username"`
}

// Register — POST /auth/register {phoneNumber}. Sends (and, absent an SMS
// gateway, logs) a one-time code.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body", "code": "INVALID_CONTEXT_PAYLOAD"})
		return
	}

	code, err := h.otpService.Send(req.PhoneNumber)
	if err != nil {
		if errors.Is(err, service.ErrOTPCooldown) {
			c.JSON(http.StatusTooManyRequests, gin.H{"message": err.Error(), "code": "OTP_COOLDOWN"})
			return
		}
		log.Printf("[AuthHandler] failed to send otp to %s: %v", req.PhoneNumber, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to send verification code"})
		return
	}

	log.Printf("[AuthHandler] otp for %s: %s", req.PhoneNumber, code)
	c.JSON(http.StatusOK, gin.H{"message": "verification code sent"})
}

// VerifyOTP — POST /auth/verify-otp {phoneNumber, otp, username?} →
// {player, accessToken}, sets the refresh_token cookie.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body", "code": "INVALID_CONTEXT_PAYLOAD"})
		return
	}

	if err := h.otpService.Verify(req.PhoneNumber, req.OTP); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, service.ErrOTPAttemptsUsed) {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"message": err.Error(), "code": "INVALID_TOKEN"})
		return
	}

	user, err := h.userRepo.GetByPhoneNumber(req.PhoneNumber)
	if err != nil {
		user = &entity.User{
			PhoneNumber: req.PhoneNumber,
			Username:    req.Username,
		}
		if user.Username == "" {
			user.Username = "player-" + req.PhoneNumber
		}
		if err := h.userRepo.Create(user); err != nil {
			log.Printf("[AuthHandler] failed to create user for %s: %v", req.PhoneNumber, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create account"})
			return
		}
	}

	h.issueSession(c, user)
}

// Refresh — POST /auth/refresh → new accessToken, rotated refresh cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "missing refresh token", "code": "MISSING_TOKEN"})
		return
	}

	claims, err := h.jwtService.ParseRefreshToken(cookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid refresh token", "code": "INVALID_TOKEN"})
		return
	}

	user, err := h.userRepo.GetByID(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "session not found", "code": "SESSION_NOT_FOUND"})
		return
	}

	h.issueSession(c, user)
}

func (h *AuthHandler) issueSession(c *gin.Context, user *entity.User) {
	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("[AuthHandler] failed to sign access token for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to issue session"})
		return
	}

	refreshToken, err := h.jwtService.GenerateRefreshToken(user.ID)
	if err != nil {
		log.Printf("[AuthHandler] failed to sign refresh token for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to issue session"})
		return
	}

	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(refreshCookieName, refreshToken, int(h.jwtService.RefreshTokenTTL().Seconds()), "/", "", true, true)

	c.JSON(http.StatusOK, gin.H{
		"player":      user,
		"accessToken": accessToken,
	})
}
