package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/marloweapps/flexspend-api/internal/domain"
	"github.com/marloweapps/flexspend-api/internal/infra/memstore"
	"github.com/marloweapps/flexspend-api/internal/service"
)

type fakeVerifier struct {
	sentTo   []string
	approved bool
	checkErr error
}

func (f *fakeVerifier) SendCode(_ context.Context, phone string) error {
	f.sentTo = append(f.sentTo, phone)
	return nil
}

func (f *fakeVerifier) CheckCode(_ context.Context, _, _ string) (bool, error) {
	return f.approved, f.checkErr
}

func newAuthFixture(verifier *fakeVerifier) *service.AuthService {
	return service.NewAuthService(
		memstore.New(), verifier,
		[]byte("test-secret"),
		15*time.Minute, 30*24*time.Hour,
		zap.NewNop(),
	)
}

func TestSendCode_RejectsMalformedPhone(t *testing.T) {
	verifier := &fakeVerifier{}
	svc := newAuthFixture(verifier)

	err := svc.SendCode(context.Background(), "555-1234")
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verifier.sentTo) != 0 {
		t.Error("expected no code sent for a malformed number")
	}
}

func TestVerifyCode_IssuesSession(t *testing.T) {
	svc := newAuthFixture(&fakeVerifier{approved: true})

	session, err := svc.VerifyCode(context.Background(), "+15550001111", "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}

	userID, err := svc.ValidateAccessToken(session.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != session.UserID {
		t.Errorf("expected token subject %q, got %q", session.UserID, userID)
	}

	// The same phone always maps to the same user.
	again, err := svc.VerifyCode(context.Background(), "+15550001111", "123456")
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if again.UserID != session.UserID {
		t.Errorf("expected stable user id, got %q then %q", session.UserID, again.UserID)
	}
}

func TestVerifyCode_WrongCode(t *testing.T) {
	svc := newAuthFixture(&fakeVerifier{approved: false})

	_, err := svc.VerifyCode(context.Background(), "+15550001111", "000000")
	var invalid *domain.ErrInvalidCode
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc := newAuthFixture(&fakeVerifier{approved: true})
	ctx := context.Background()

	session, err := svc.VerifyCode(ctx, "+15550001111", "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	rotated, err := svc.Refresh(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.UserID != session.UserID {
		t.Errorf("expected same user after rotation")
	}
	if rotated.RefreshToken == session.RefreshToken {
		t.Error("expected a fresh refresh token")
	}

	// The old token was revoked by the rotation.
	_, err = svc.Refresh(ctx, session.RefreshToken)
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected reuse of rotated token to fail, got %v", err)
	}
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	svc := newAuthFixture(&fakeVerifier{approved: true})
	ctx := context.Background()

	session, _ := svc.VerifyCode(ctx, "+15550001111", "123456")
	if err := svc.Logout(ctx, session.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	_, err := svc.Refresh(ctx, session.RefreshToken)
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
}

func TestPasscode_RoundTrip(t *testing.T) {
	svc := newAuthFixture(&fakeVerifier{})
	ctx := context.Background()

	if err := svc.SetPasscode(ctx, "u1", "7391"); err != nil {
		t.Fatalf("set passcode: %v", err)
	}
	if err := svc.VerifyPasscode(ctx, "u1", "7391"); err != nil {
		t.Fatalf("verify passcode: %v", err)
	}

	err := svc.VerifyPasscode(ctx, "u1", "0000")
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected wrong passcode rejected, got %v", err)
	}
}

func TestValidateAccessToken_RejectsGarbage(t *testing.T) {
	svc := newAuthFixture(&fakeVerifier{})

	_, err := svc.ValidateAccessToken("not-a-jwt")
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
