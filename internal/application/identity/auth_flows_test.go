package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
)

func TestLogin_EmptyFields_InvalidCredentials(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.svc.Login(context.Background(), "", "")
	requireDomainCode(t, err, "invalid_credentials")
}

func TestLogin_UnknownUser_NonEnumerating(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.svc.Login(context.Background(), "ghost", "pw")
	requireDomainCode(t, err, "invalid_credentials")
}

func TestLogin_WrongPassword_InvalidCredentials(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.mustCreate(t, "alice", "alice@example.com")

	_, err := h.svc.Login(context.Background(), "alice", "nope")
	requireDomainCode(t, err, "invalid_credentials")
	if !h.audits.has("login.failed") {
		t.Fatalf("expected login.failed audit")
	}
}

func TestLogin_InactiveUser_InvalidCredentials(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx identity.Tx) error {
		_, err := tx.CreateUser(ctx, domain.User{
			Username:     "sleepy",
			Email:        "sleepy@example.com",
			PasswordHash: "HASH(pw)",
			Role:         domain.RoleUser,
			IsActive:     false,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = h.svc.Login(context.Background(), "sleepy", "pw")
	requireDomainCode(t, err, "invalid_credentials")
}

func TestLogin_Success_IssuesTokens(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := h.mustCreate(t, "alice", "alice@example.com")

	res, err := h.svc.Login(context.Background(), " alice ", "pw-alice")
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if res.User.ID != a.User.ID || res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Tokens.TokenType != "Bearer" || res.Tokens.ExpiresIn != 300 {
		t.Fatalf("unexpected token metadata: %+v", res.Tokens)
	}
}

func TestRefresh_Empty_Invalid(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.svc.Refresh(context.Background(), "")
	requireDomainCode(t, err, "token_invalid")
}

func TestRefresh_Success_KeepsRefreshToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := h.mustCreate(t, "alice", "alice@example.com")

	toks, err := h.svc.Refresh(context.Background(), a.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if toks.AccessToken == "" || toks.RefreshToken != a.Tokens.RefreshToken {
		t.Fatalf("unexpected tokens: %+v", toks)
	}
}

func TestLogout_ThenRefresh_Rejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	a := h.mustCreate(t, "alice", "alice@example.com")

	if err := h.svc.Logout(ctx, a.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	// idempotent
	if err := h.svc.Logout(ctx, a.Tokens.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}

	_, err := h.svc.Refresh(ctx, a.Tokens.RefreshToken)
	requireDomainCode(t, err, "token_invalid")
}

func TestLogout_EmptyOrExpired_NoOp(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := h.mustCreate(t, "alice", "alice@example.com")
	h.tokens.expire(a.Tokens.RefreshToken)

	if err := h.svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := h.svc.Logout(context.Background(), a.Tokens.RefreshToken); err != nil {
		t.Fatalf("expected nil for expired token, got %v", err)
	}
}

func TestLogout_GarbageToken_Invalid(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	err := h.svc.Logout(context.Background(), "garbage")
	requireDomainCode(t, err, "token_invalid")
}

func TestVerifyEmail_ConfirmFlipsVerified_AndBlocksCapture(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := h.mustCreate(t, "alice", "alice@example.com")

	h.verify(t, a.User.ID)

	c := h.store.Claims()[0]
	if !c.IsVerified {
		t.Fatalf("expected verified claim, got %+v", c)
	}
	if !h.audits.has("email.verified") {
		t.Fatalf("expected email.verified audit")
	}

	_, err := h.svc.CreateUser(context.Background(), signUp("mallory", "alice@example.com"))
	requireDomainCode(t, err, domain.CodeEmailAddressAlreadyExists)
}

func TestVerifyEmail_TokenIsSingleUse(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	a := h.mustCreate(t, "alice", "alice@example.com")

	if err := h.svc.RequestEmailVerification(ctx, a.User.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := h.pub.verify[0].URL[len("https://fe/verify?token="):]
	if h.pub.verify[0].Email != "alice@example.com" {
		t.Fatalf("unexpected event: %+v", h.pub.verify[0])
	}

	if err := h.svc.ConfirmEmailVerification(ctx, token); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	err := h.svc.ConfirmEmailVerification(ctx, token)
	requireDomainCode(t, err, "verify_token_not_found")
}

func TestVerifyEmail_ClaimCapturedBeforeConfirm_Rejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	a := h.mustCreate(t, "alice", "shared@example.com")

	if err := h.svc.RequestEmailVerification(ctx, a.User.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := h.pub.verify[0].URL[len("https://fe/verify?token="):]

	// bob captures the unverified email; alice is removed
	h.mustCreate(t, "bob", "shared@example.com")

	err := h.svc.ConfirmEmailVerification(ctx, token)
	requireDomainCode(t, err, "verify_token_not_found")
	if h.store.Claims()[0].IsVerified {
		t.Fatalf("claim must stay unverified")
	}
}

func TestVerifyEmail_EmptyToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	err := h.svc.ConfirmEmailVerification(context.Background(), "  ")
	requireDomainCode(t, err, "verify_token_not_found")
}

func TestRequestEmailVerification_UnknownUser(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	err := h.svc.RequestEmailVerification(context.Background(), 77)
	requireDomainCode(t, err, domain.CodeUserDoesNotExist)
}

func TestRequestEmailVerification_PublishFailureReturned(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := h.mustCreate(t, "alice", "alice@example.com")
	h.pub.err = domain.ErrBrokerUnavailable(errors.New("down"))

	err := h.svc.RequestEmailVerification(context.Background(), a.User.ID)
	requireDomainCode(t, err, "broker_unavailable")
}

func TestProfile_Missing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.svc.Profile(context.Background(), 5)
	requireDomainCode(t, err, domain.CodeUserDoesNotExist)
}
