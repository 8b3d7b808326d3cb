package audit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/noah-isme/backend-cafe/internal/audit"
	"github.com/noah-isme/backend-cafe/internal/common"
)

type memStore struct {
	entries []audit.Entry
}

func (m *memStore) Insert(_ context.Context, entry audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) List(_ context.Context, limit, offset int32) ([]audit.Entry, error) {
	return m.entries, nil
}

func TestRecordNormalizesActionAndResource(t *testing.T) {
	store := &memStore{}
	svc := audit.Service{Store: store, Enabled: true}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/vouchers?dry=1", nil)
	req.Header.Set("User-Agent", "test-agent")

	userID := "user-9"
	actor := audit.Actor{Kind: audit.ActorKindUser, UserID: &userID}
	if err := svc.Record(req.Context(), actor, "", "", "", req, http.StatusCreated, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	entry := store.entries[0]
	if entry.Action != "POST /api/v1/admin/vouchers" {
		t.Fatalf("unexpected action: %q", entry.Action)
	}
	if entry.ResourceType != "admin.vouchers" {
		t.Fatalf("unexpected resource type: %q", entry.ResourceType)
	}
	if entry.Status != http.StatusCreated {
		t.Fatalf("unexpected status: %d", entry.Status)
	}
	if !entry.ActorUserID.Valid || entry.ActorUserID.String != "user-9" {
		t.Fatalf("unexpected actor user id: %+v", entry.ActorUserID)
	}
	if string(entry.Metadata) != `{"query":"dry=1"}` {
		t.Fatalf("unexpected metadata: %s", entry.Metadata)
	}
}

func TestRecordDisabledIsNoop(t *testing.T) {
	store := &memStore{}
	svc := audit.Service{Store: store, Enabled: false}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	if err := svc.Record(req.Context(), audit.Actor{}, "", "", "", req, 200, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(store.entries) != 0 {
		t.Fatalf("expected no entries when disabled, got %d", len(store.entries))
	}
}

func TestMiddlewareRecordsAuthenticatedActor(t *testing.T) {
	store := &memStore{}
	recorder := audit.HTTPRecorder{Service: &audit.Service{Store: store, Enabled: true}}

	handler := recorder.Middleware(audit.HTTPConfig{ResourceType: "admin.orders"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/o-1/cancel", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "admin-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	entry := store.entries[0]
	if entry.ActorKind != string(audit.ActorKindUser) {
		t.Fatalf("unexpected actor kind: %q", entry.ActorKind)
	}
	if entry.Status != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", entry.Status)
	}
}
