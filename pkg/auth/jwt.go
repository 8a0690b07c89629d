package auth

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/yourusername/trivia-api/internal/domain/entity"
)

// JWTCustomClaims содержит пользовательские поля для токена.
// Usage отличает обычный access-токен от короткоживущего WS-тикета (§4.3 authenticate).
type JWTCustomClaims struct {
	UserID uint   `json:"user_id"`
	Usage  string `json:"usage,omitempty"`
	jwt.RegisteredClaims
}

// JWTService подписывает и проверяет bearer-токены HTTP-слоя и WS-тикеты.
// Выдача/ротация JWT — внешняя обязанность согласно §1 ("JWT signing and
// cookie handling for HTTP auth" числится вне ядра); этот сервис существует
// потому что ядру (Session Registry, §4.3) все равно нужно распарсить токен,
// переданный в сообщении authenticate, а HTTP-обвязке — подписать его.
type JWTService struct {
	secret          []byte
	accessTokenTTL  time.Duration
	wsTicketTTL     time.Duration
	refreshTokenTTL time.Duration

	mu               sync.RWMutex
	invalidatedUsers map[uint]time.Time
}

// NewJWTService создает новый JWTService со статическим секретом.
func NewJWTService(secret string, accessTokenTTL, wsTicketTTL time.Duration) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if accessTokenTTL <= 0 {
		accessTokenTTL = 15 * time.Minute
	}
	if wsTicketTTL <= 0 {
		wsTicketTTL = 60 * time.Second
	}
	return &JWTService{
		secret:           []byte(secret),
		accessTokenTTL:   accessTokenTTL,
		wsTicketTTL:      wsTicketTTL,
		refreshTokenTTL:  7 * 24 * time.Hour,
		invalidatedUsers: make(map[uint]time.Time),
	}, nil
}

// GenerateToken создает access-токен для пользователя.
func (s *JWTService) GenerateToken(user *entity.User) (string, error) {
	claims := &JWTCustomClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "trivia-api",
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] failed to sign access token for user %d: %v", user.ID, err)
		return "", err
	}
	return tokenString, nil
}

// ParseToken проверяет и расшифровывает bearer-токен, как его передает
// клиент в authenticate{token} (§4.3, §4.8).
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.Usage == "websocket_auth" {
		return claims, nil
	}

	if s.isInvalidated(claims.UserID, claims.IssuedAt) {
		return nil, errors.New("token has been invalidated")
	}

	return claims, nil
}

// GenerateWSTicket создает короткоживущий тикет для установления WS-соединения.
func (s *JWTService) GenerateWSTicket(userID uint) (string, error) {
	claims := &JWTCustomClaims{
		UserID: userID,
		Usage:  "websocket_auth",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.wsTicketTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "trivia-api",
			Subject:   fmt.Sprintf("%d", userID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseWSTicket проверяет тикет, используемый для установления соединения.
func (s *JWTService) ParseWSTicket(ticketString string) (*JWTCustomClaims, error) {
	claims, err := s.ParseToken(ticketString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != "websocket_auth" {
		return nil, errors.New("invalid ticket usage")
	}
	return claims, nil
}

// GenerateRefreshToken создает долгоживущий токен для ротации через cookie
// refresh_token (§6 "POST /auth/verify-otp ... sets refresh_token cookie").
func (s *JWTService) GenerateRefreshToken(userID uint) (string, error) {
	claims := &JWTCustomClaims{
		UserID: userID,
		Usage:  "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.refreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "trivia-api",
			Subject:   fmt.Sprintf("%d", userID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseRefreshToken проверяет токен из cookie refresh_token.
func (s *JWTService) ParseRefreshToken(tokenString string) (*JWTCustomClaims, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != "refresh" {
		return nil, errors.New("invalid refresh token usage")
	}
	return claims, nil
}

// RefreshTokenTTL возвращает срок жизни refresh-токена для установки cookie maxAge.
func (s *JWTService) RefreshTokenTTL() time.Duration {
	return s.refreshTokenTTL
}

// InvalidateTokensForUser помечает все токены пользователя, выданные до этого
// момента, как недействительные — используется при форсированном logout
// конкурирующей сессии (§8 сценарий 4, "Auth conflict").
func (s *JWTService) InvalidateTokensForUser(userID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidatedUsers[userID] = time.Now()
}

func (s *JWTService) isInvalidated(userID uint, issuedAt *jwt.NumericDate) bool {
	if userID == 0 {
		return false
	}
	s.mu.RLock()
	invalidatedAt, exists := s.invalidatedUsers[userID]
	s.mu.RUnlock()
	if !exists {
		return false
	}
	return issuedAt == nil || !issuedAt.Time.After(invalidatedAt)
}
