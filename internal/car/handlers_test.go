package car

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/westgate-auto/backend-westgate/internal/common"
	"github.com/westgate-auto/backend-westgate/internal/pricing"
)

type stubEnqueuer struct {
	enqueued []*asynq.Task
	err      error
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.enqueued = append(s.enqueued, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

func newCarHandler(store *memStore, tasks TaskEnqueuer) *Handler {
	return &Handler{
		Svc:      &Service{Store: store, Pricing: &stubQuoter{breakdown: pricing.Breakdown{TotalFee: 7033}}},
		Tasks:    tasks,
		Validate: validator.New(),
	}
}

func carRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/cars", h.Create)
	r.Get("/cars", h.List)
	r.Get("/cars/{id}", h.Get)
	r.Put("/cars/{id}", h.Update)
	r.Delete("/cars/{id}", h.Delete)
	r.Post("/cars/{id}/payments", h.AddPayment)
	r.Get("/cars/{id}/payments", h.ListPayments)
	r.Post("/admin/pricing/recalculate", h.Recalculate)
	r.Post("/admin/pricing/recalculate/run", h.RecalculateNow)
	return r
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	ctx := common.WithUserID(req.Context(), userID.String())
	ctx = common.WithRole(ctx, common.RoleUser)
	return req.WithContext(ctx)
}

func asAdmin(req *http.Request, userID uuid.UUID) *http.Request {
	ctx := common.WithUserID(req.Context(), userID.String())
	ctx = common.WithRole(ctx, common.RoleAdmin)
	return req.WithContext(ctx)
}

const validCarBody = `{"vin":"1FTEW1EP5NKD12345","make":"Ford","model":"F-150","year":2022,` +
	`"auction":"Copart","auction_location":"GA - Savannah","port":"Savannah, GA","purchase_price":5000}`

func TestHandlerCreateAssignsCaller(t *testing.T) {
	store := newMemStore()
	h := newCarHandler(store, nil)
	userID := uuid.New()

	req := asUser(httptest.NewRequest(http.MethodPost, "/cars", strings.NewReader(validCarBody)), userID)
	rr := httptest.NewRecorder()
	carRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, store.cars, 1)
	for _, c := range store.cars {
		require.NotNil(t, c.OwnerID)
		require.Equal(t, userID, *c.OwnerID)
		require.Equal(t, 7033.0, c.Fees.TotalFee)
	}
}

func TestHandlerCreateRejectsShortVIN(t *testing.T) {
	h := newCarHandler(newMemStore(), nil)
	body := strings.Replace(validCarBody, "1FTEW1EP5NKD12345", "SHORT", 1)
	req := asUser(httptest.NewRequest(http.MethodPost, "/cars", strings.NewReader(body)), uuid.New())
	rr := httptest.NewRecorder()
	carRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerListScopesToOwner(t *testing.T) {
	store := newMemStore()
	mine := uuid.New()
	other := uuid.New()
	store.cars[uuid.New()] = Car{ID: uuid.New(), OwnerID: &mine, VIN: "A"}
	store.cars[uuid.New()] = Car{ID: uuid.New(), OwnerID: &other, VIN: "B"}
	h := newCarHandler(store, nil)

	req := asUser(httptest.NewRequest(http.MethodGet, "/cars", nil), mine)
	rr := httptest.NewRecorder()
	carRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data       []Car             `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, 1, resp.Pagination.TotalItems)
}

func TestHandlerListAdminSeesAll(t *testing.T) {
	store := newMemStore()
	ownerA := uuid.New()
	ownerB := uuid.New()
	store.cars[uuid.New()] = Car{ID: uuid.New(), OwnerID: &ownerA}
	store.cars[uuid.New()] = Car{ID: uuid.New(), OwnerID: &ownerB}
	h := newCarHandler(store, nil)

	req := asAdmin(httptest.NewRequest(http.MethodGet, "/cars", nil), uuid.New())
	rr := httptest.NewRecorder()
	carRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data []Car `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
}

func TestHandlerGetHidesForeignCar(t *testing.T) {
	store := newMemStore()
	owner := uuid.New()
	carID := uuid.New()
	store.cars[carID] = Car{ID: carID, OwnerID: &owner}
	h := newCarHandler(store, nil)

	req := asUser(httptest.NewRequest(http.MethodGet, "/cars/"+carID.String(), nil), uuid.New())
	rr := httptest.NewRecorder()
	carRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerAddPayment(t *testing.T) {
	store := newMemStore()
	h := newCarHandler(store, nil)
	carID := uuid.New()
	store.cars[carID] = Car{ID: carID, Fees: pricing.Breakdown{TotalFee: 7033}}

	req := asAdmin(httptest.NewRequest(http.MethodPost, "/cars/"+carID.String()+"/payments",
		strings.NewReader(`{"amount":3000,"note":"deposit"}`)), uuid.New())
	rr := httptest.NewRecorder()
	carRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		Data Car `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 4033.0, resp.Data.TotalDue)
}

func TestHandlerRecalculateEnqueues(t *testing.T) {
	tasks := &stubEnqueuer{}
	h := newCarHandler(newMemStore(), tasks)

	req := asAdmin(httptest.NewRequest(http.MethodPost, "/admin/pricing/recalculate", nil), uuid.New())
	rr := httptest.NewRecorder()
	carRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, tasks.enqueued, 1)
	require.Equal(t, TaskRecalculate, tasks.enqueued[0].Type())
}

func TestHandlerRecalculateScopesPayload(t *testing.T) {
	tasks := &stubEnqueuer{}
	h := newCarHandler(newMemStore(), tasks)
	owner := uuid.New()

	req := asAdmin(httptest.NewRequest(http.MethodPost, "/admin/pricing/recalculate?user_id="+owner.String(), nil), uuid.New())
	rr := httptest.NewRecorder()
	carRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, tasks.enqueued, 1)
	var payload struct {
		UserID *uuid.UUID `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(tasks.enqueued[0].Payload(), &payload))
	require.NotNil(t, payload.UserID)
	require.Equal(t, owner, *payload.UserID)
}

func TestHandlerRecalculateNowReportsOutcome(t *testing.T) {
	store := newMemStore()
	carID := uuid.New()
	store.cars[carID] = Car{ID: carID, VIN: "1FTEW1EP5NKD12345", PurchasePrice: 5000}
	h := newCarHandler(store, nil)
	h.Recalc = &Recalculator{Store: store, Pricing: &vinQuoter{}}

	req := asAdmin(httptest.NewRequest(http.MethodPost, "/admin/pricing/recalculate/run", nil), uuid.New())
	rr := httptest.NewRecorder()
	carRouter(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data struct {
			Success      bool      `json:"success"`
			UpdatedCount int       `json:"updatedCount"`
			Errors       []Failure `json:"errors"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Data.Success)
	require.Equal(t, 1, resp.Data.UpdatedCount)
	require.Empty(t, resp.Data.Errors)
}
