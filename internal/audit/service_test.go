package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/westgate-auto/backend-westgate/internal/common"
	"github.com/westgate-auto/backend-westgate/internal/obs"
)

type stubStore struct {
	lastInsert Log
	listed     []Log
	called     bool
}

func (s *stubStore) InsertAuditLog(_ context.Context, entry Log) (Log, error) {
	s.called = true
	s.lastInsert = entry
	return entry, nil
}

func (s *stubStore) ListAuditLogs(context.Context, int32, int32) ([]Log, error) {
	return s.listed, nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}
	userID := uuid.NewString()

	req := httptest.NewRequest(http.MethodPut, "https://api.test/api/v1/admin/pricing/overrides/default?reason=promo", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := common.WithUserID(req.Context(), userID)
	ctx = obs.WithRoutePattern(ctx, "/api/v1/admin/pricing/overrides/default")
	req = req.WithContext(ctx)

	if err := svc.Record(req.Context(), Actor{Kind: ActorKindUser, UserID: &userID}, "", "", "", req, http.StatusOK, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !store.called {
		t.Fatal("expected store to be called")
	}
	if store.lastInsert.ActorKind != string(ActorKindUser) {
		t.Fatalf("unexpected actor kind: %s", store.lastInsert.ActorKind)
	}
	if store.lastInsert.ActorUserID == nil || store.lastInsert.ActorUserID.String() != userID {
		t.Fatalf("unexpected stored user id: %v", store.lastInsert.ActorUserID)
	}
	if store.lastInsert.Action != "PUT /api/v1/admin/pricing/overrides/default" {
		t.Fatalf("unexpected action: %s", store.lastInsert.Action)
	}
	if store.lastInsert.ResourceType != "admin.pricing.overrides.default" {
		t.Fatalf("unexpected resource type: %s", store.lastInsert.ResourceType)
	}
	if store.lastInsert.IP == nil || *store.lastInsert.IP != "10.0.0.2" {
		t.Fatalf("expected ip capture, got %v", store.lastInsert.IP)
	}
	if store.lastInsert.RequestID == nil || *store.lastInsert.RequestID != "req-123" {
		t.Fatalf("expected request id, got %v", store.lastInsert.RequestID)
	}
	var meta map[string]string
	if err := json.Unmarshal(store.lastInsert.Metadata, &meta); err != nil {
		t.Fatalf("metadata json: %v", err)
	}
	if meta["query"] != "reason=promo" {
		t.Fatalf("unexpected metadata query: %s", meta["query"])
	}
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := Service{Store: store, Enabled: false}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if err := svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if store.called {
		t.Fatal("expected no insert when disabled")
	}
}
