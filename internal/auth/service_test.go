package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/noah-isme/backend-cafe/internal/common"
)

func newTestService(t *testing.T, adminKeyHash string) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Secret:          "super-secret-session-key",
		SessionTokenTTL: time.Hour,
		AdminKeyHash:    adminKeyHash,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestIssueAndParseSessionToken(t *testing.T) {
	svc := newTestService(t, "")
	session, err := svc.IssueSession("platform-user-42")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	if session.AccessToken == "" {
		t.Fatalf("expected a signed token")
	}
	subject, err := svc.ParseAccessToken(session.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if subject != "platform-user-42" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestIssueSessionRequiresPlatformUser(t *testing.T) {
	svc := newTestService(t, "")
	if _, err := svc.IssueSession("   "); err == nil {
		t.Fatalf("expected validation error for blank platform user id")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc := newTestService(t, "")
	issued := time.Now().Add(-2 * time.Hour)
	svc.WithNow(func() time.Time { return issued })
	session, err := svc.IssueSession("platform-user-42")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	svc.WithNow(time.Now)
	if _, err := svc.ParseAccessToken(session.AccessToken); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseAccessTokenRejectsForeignSecret(t *testing.T) {
	issuer := newTestService(t, "")
	session, err := issuer.IssueSession("platform-user-42")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	other, err := NewService(Config{Secret: "a-different-secret"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := other.ParseAccessToken(session.AccessToken); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestVerifyAdminKey(t *testing.T) {
	hash, err := argon2id.CreateHash("let-me-in", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	svc := newTestService(t, hash)

	if err := svc.VerifyAdminKey("let-me-in"); err != nil {
		t.Fatalf("valid admin key rejected: %v", err)
	}
	if err := svc.VerifyAdminKey("wrong"); err == nil {
		t.Fatalf("invalid admin key accepted")
	}

	unconfigured := newTestService(t, "")
	if err := unconfigured.VerifyAdminKey("let-me-in"); err == nil {
		t.Fatalf("admin access must be disabled without a configured hash")
	}
}

func TestRequireAuthSetsUserID(t *testing.T) {
	svc := newTestService(t, "")
	session, err := svc.IssueSession("platform-user-42")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	mw := Middleware{Service: svc}
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	rec := httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if seen != "platform-user-42" {
		t.Fatalf("user id not propagated, got %q", seen)
	}
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	mw := Middleware{Service: newTestService(t, "")}
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	mw.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("next handler must not run")
	})).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	hash, err := argon2id.CreateHash("ops-key", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	mw := Middleware{Service: newTestService(t, hash)}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/vouchers", nil)
	req.Header.Set("X-Admin-Key", "ops-key")
	rec := httptest.NewRecorder()
	mw.RequireAdmin(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid key rejected, status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/vouchers", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	rec = httptest.NewRecorder()
	mw.RequireAdmin(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid key accepted, status %d", rec.Code)
	}
}
