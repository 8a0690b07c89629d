package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/trivia-api/internal/domain/repository"
)

var (
	ErrOTPCooldown     = errors.New("an otp was already sent recently, please wait")
	ErrOTPInvalid      = errors.New("invalid or expired otp")
	ErrOTPAttemptsUsed = errors.New("too many incorrect attempts, request a new code")
)

// otpRecord is the ephemeral state stored in Redis per phone number, the
// phone-OTP analogue of the teacher's email verification record — a
// bcrypt hash of the code rather than the code itself, a resend cooldown,
// and a bounded attempt counter (grounded on EmailVerificationService).
type otpRecord struct {
	CodeHash  string    `json:"codeHash"`
	SentAt    time.Time `json:"sentAt"`
	Attempts  int       `json:"attempts"`
}

// OTPService issues and verifies one-time phone verification codes. JWT
// signing and cookie handling for the resulting session are out of this
// service's scope — callers exchange a verified phone for a JWTService
// token (§1 "external collaborators").
type OTPService struct {
	cache          repository.CacheRepository
	ttl            time.Duration
	resendCooldown time.Duration
	maxAttempts    int
}

func NewOTPService(cache repository.CacheRepository, ttl, resendCooldown time.Duration, maxAttempts int) *OTPService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if resendCooldown <= 0 {
		resendCooldown = 60 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OTPService{cache: cache, ttl: ttl, resendCooldown: resendCooldown, maxAttempts: maxAttempts}
}

func otpKey(phoneNumber string) string {
	return fmt.Sprintf("otp:%s", phoneNumber)
}

// Send generates and stores a new 6-digit code for phoneNumber, honoring
// the resend cooldown. The code itself is the caller's responsibility to
// deliver (SMS gateway integration is out of scope; in this deployment it
// is logged, matching the teacher's debug-mode email delivery fallback).
func (s *OTPService) Send(phoneNumber string) (string, error) {
	var existing otpRecord
	if err := s.cache.GetJSON(otpKey(phoneNumber), &existing); err == nil {
		if time.Since(existing.SentAt) < s.resendCooldown {
			return "", ErrOTPCooldown
		}
	}

	code, err := generateNumericCode(6)
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp code: %w", err)
	}

	record := otpRecord{CodeHash: string(hash), SentAt: time.Now()}
	if err := s.cache.SetJSON(otpKey(phoneNumber), record, s.ttl); err != nil {
		return "", fmt.Errorf("store otp record: %w", err)
	}
	return code, nil
}

// Verify checks code against the stored record for phoneNumber, consuming
// the record on success or on exhausting the attempt budget.
func (s *OTPService) Verify(phoneNumber, code string) error {
	var record otpRecord
	if err := s.cache.GetJSON(otpKey(phoneNumber), &record); err != nil {
		return ErrOTPInvalid
	}
	if record.Attempts >= s.maxAttempts {
		s.cache.Delete(otpKey(phoneNumber))
		return ErrOTPAttemptsUsed
	}

	if bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)) != nil {
		record.Attempts++
		_ = s.cache.SetJSON(otpKey(phoneNumber), record, s.ttl)
		return ErrOTPInvalid
	}

	s.cache.Delete(otpKey(phoneNumber))
	return nil
}

func generateNumericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
