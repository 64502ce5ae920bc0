package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/marloweapps/flexspend-api/internal/domain"
	"github.com/marloweapps/flexspend-api/internal/port"
)

// phonePattern accepts E.164 numbers.
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// AuthService implements the passwordless phone login: send a one-time
// SMS code, verify it, and hand out a JWT access token with a rotating
// refresh token. An optional device passcode gates re-entry.
type AuthService struct {
	sessions   port.SessionStore
	verifier   port.CodeVerifier
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates the auth service.
func NewAuthService(sessions port.SessionStore, verifier port.CodeVerifier, jwtSecret []byte, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		sessions:   sessions,
		verifier:   verifier,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// userIDForPhone derives a stable user id from the phone number so the
// same person always lands on the same account.
func userIDForPhone(phone string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(phone)).String()
}

// SendCode asks the verification provider to text a login code.
func (s *AuthService) SendCode(ctx context.Context, phone string) error {
	ctx, span := tracer.Start(ctx, "AuthService.SendCode")
	defer span.End()

	if !phonePattern.MatchString(phone) {
		return &domain.ErrValidation{Field: "phone", Message: "must be an E.164 number"}
	}
	return s.verifier.SendCode(ctx, phone)
}

// VerifyCode checks the one-time code and, on success, issues a session.
func (s *AuthService) VerifyCode(ctx context.Context, phone, code string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "AuthService.VerifyCode")
	defer span.End()

	if !phonePattern.MatchString(phone) {
		return nil, &domain.ErrValidation{Field: "phone", Message: "must be an E.164 number"}
	}
	if code == "" {
		return nil, &domain.ErrValidation{Field: "code", Message: "required"}
	}

	approved, err := s.verifier.CheckCode(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, &domain.ErrInvalidCode{}
	}

	userID := userIDForPhone(phone)
	s.logger.Info("phone verified", zap.String("user_id", userID))
	return s.issueSession(ctx, userID)
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair is issued. A reused (already revoked) token fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	hash := hashToken(refreshToken)
	record, err := s.sessions.GetRefreshToken(ctx, hash)
	if err != nil {
		return nil, err
	}
	if record == nil || s.now().After(record.ExpiresAt) {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired refresh token"}
	}
	if err := s.sessions.RevokeRefreshToken(ctx, hash); err != nil {
		return nil, err
	}
	return s.issueSession(ctx, record.UserID)
}

// Logout revokes a single refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.RevokeRefreshToken(ctx, hashToken(refreshToken))
}

// LogoutAll revokes every refresh token for the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllRefreshTokens(ctx, userID)
}

// SetPasscode hashes and stores the device passcode.
func (s *AuthService) SetPasscode(ctx context.Context, userID, passcode string) error {
	ctx, span := tracer.Start(ctx, "AuthService.SetPasscode")
	defer span.End()

	if len(passcode) < 4 {
		return &domain.ErrValidation{Field: "passcode", Message: "must be at least 4 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.sessions.PutPasscodeHash(ctx, userID, string(hash))
}

// VerifyPasscode checks the device passcode against the stored hash.
func (s *AuthService) VerifyPasscode(ctx context.Context, userID, passcode string) error {
	ctx, span := tracer.Start(ctx, "AuthService.VerifyPasscode")
	defer span.End()

	hash, err := s.sessions.GetPasscodeHash(ctx, userID)
	if err != nil {
		return err
	}
	if hash == "" {
		return &domain.ErrNotFound{Resource: "passcode", ID: userID}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)); err != nil {
		return &domain.ErrUnauthorized{Message: "incorrect passcode"}
	}
	return nil
}

// ValidateAccessToken parses and verifies an access token, returning
// the user id it was issued for.
func (s *AuthService) ValidateAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &domain.ErrUnauthorized{Message: "unexpected signing method"}
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", &domain.ErrUnauthorized{Message: "invalid access token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", &domain.ErrUnauthorized{Message: "invalid token claims"}
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", &domain.ErrUnauthorized{Message: "missing subject"}
	}
	return sub, nil
}

func (s *AuthService) issueSession(ctx context.Context, userID string) (*domain.Session, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
		"jti": uuid.NewString(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	refreshToken := uuid.NewString()
	expiresAt := now.Add(s.refreshTTL)
	if err := s.sessions.StoreRefreshToken(ctx, userID, hashToken(refreshToken), expiresAt); err != nil {
		return nil, err
	}

	return &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		UserID:       userID,
	}, nil
}

// hashToken stores only a digest of refresh tokens at rest.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
