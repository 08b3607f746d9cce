package car

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/westgate-auto/backend-westgate/internal/common"
	"github.com/westgate-auto/backend-westgate/internal/rates"
)

// TaskEnqueuer enqueues background tasks. Satisfied by asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RecalcRunner runs a bulk repricing inline. Satisfied by *Recalculator.
type RecalcRunner interface {
	Run(ctx context.Context, ownerID *uuid.UUID) (Result, error)
}

// Handler exposes the car inventory endpoints.
type Handler struct {
	Svc      *Service
	Tasks    TaskEnqueuer
	Recalc   RecalcRunner
	Validate *validator.Validate
}

type carPayload struct {
	OwnerID         *string `json:"owner_id"`
	VIN             string  `json:"vin" validate:"required,min=11,max=17"`
	Make            string  `json:"make" validate:"required"`
	Model           string  `json:"model" validate:"required"`
	Year            int     `json:"year" validate:"required,gte=1950,lte=2100"`
	Auction         string  `json:"auction" validate:"required"`
	AuctionLocation string  `json:"auction_location" validate:"required"`
	Port            string  `json:"port" validate:"required"`
	BodyType        string  `json:"body_type"`
	FuelType        string  `json:"fuel_type"`
	PurchasePrice   float64 `json:"purchase_price" validate:"gte=0"`
	Insurance       string  `json:"insurance" validate:"omitempty,oneof=YES NO"`
}

type paymentPayload struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Note   string  `json:"note"`
}

// Create registers a new car. Non-admin callers always own the cars they
// create; admins may assign an explicit owner.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeCar(w, r)
	if !ok {
		return
	}
	in, err := h.inputFromPayload(r, payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	created, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create car", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Get returns one car. Owners see their own cars; admins see any.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.carID(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.renderLookupError(w, err)
		return
	}
	if !h.canSee(r, c) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "car not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// List pages cars. Non-admin callers only ever see their own.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	params := ListParams{
		Limit:  int32(perPage),
		Offset: int32((page - 1) * perPage),
	}

	if common.IsAdmin(r.Context()) {
		if raw := r.URL.Query().Get("owner_id"); raw != "" {
			ownerID, err := uuid.Parse(raw)
			if err != nil {
				common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid owner id", nil)
				return
			}
			params.OwnerID = &ownerID
		}
	} else {
		raw, ok := common.UserID(r.Context())
		if !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
			return
		}
		selfID, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token subject", nil)
			return
		}
		params.OwnerID = &selfID
	}

	cars, total, err := h.Svc.List(r.Context(), params)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list cars", nil)
		return
	}
	if cars == nil {
		cars = []Car{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": cars,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: total,
		},
	})
}

// Update rewrites a car and reprices it.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.carID(w, r)
	if !ok {
		return
	}
	payload, ok := h.decodeCar(w, r)
	if !ok {
		return
	}
	in, err := h.inputFromPayload(r, payload)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	updated, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		h.renderLookupError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes a car and its payment history.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.carID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		h.renderLookupError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": true}})
}

// AddPayment records money received against a car and returns refreshed dues.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.carID(w, r)
	if !ok {
		return
	}
	var payload paymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	c, err := h.Svc.RecordPayment(r.Context(), id, payload.Amount, payload.Note)
	if err != nil {
		h.renderLookupError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}

// ListPayments returns a car's payment history.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.carID(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.renderLookupError(w, err)
		return
	}
	if !h.canSee(r, c) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "car not found", nil)
		return
	}
	payments, err := h.Svc.Payments(r.Context(), id)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list payments", nil)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payments})
}

// Recalculate enqueues a fee recalculation and returns immediately. An
// optional user_id query parameter narrows the run to one owner's cars.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if h.Tasks == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "task queue not configured", nil)
		return
	}
	ownerID, ok := h.recalcScope(w, r)
	if !ok {
		return
	}
	info, err := h.Tasks.EnqueueContext(r.Context(), NewRecalculateTask(ownerID))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to enqueue recalculation", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"task_id": info.ID, "queued": true}})
}

// RecalculateNow runs the repricing inline and reports the outcome. Intended
// for small fleets and operator scripts that want the result in one call.
func (h *Handler) RecalculateNow(w http.ResponseWriter, r *http.Request) {
	if h.Recalc == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "recalculation not configured", nil)
		return
	}
	ownerID, ok := h.recalcScope(w, r)
	if !ok {
		return
	}
	res, err := h.Recalc.Run(r.Context(), ownerID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "recalculation failed", nil)
		return
	}
	failures := res.Failures
	if failures == nil {
		failures = []Failure{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"success":      true,
		"message":      "recalculation finished",
		"updatedCount": res.Updated,
		"errors":       failures,
	}})
}

func (h *Handler) recalcScope(w http.ResponseWriter, r *http.Request) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return nil, true
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return nil, false
	}
	return &ownerID, true
}

func (h *Handler) decodeCar(w http.ResponseWriter, r *http.Request) (carPayload, bool) {
	var payload carPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return carPayload{}, false
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return carPayload{}, false
	}
	return payload, true
}

func (h *Handler) inputFromPayload(r *http.Request, payload carPayload) (Input, error) {
	in := Input{
		VIN:             payload.VIN,
		Make:            payload.Make,
		Model:           payload.Model,
		Year:            payload.Year,
		Auction:         rates.ParseAuction(payload.Auction),
		AuctionLocation: payload.AuctionLocation,
		Port:            payload.Port,
		BodyType:        payload.BodyType,
		FuelType:        payload.FuelType,
		PurchasePrice:   payload.PurchasePrice,
		Insurance:       payload.Insurance == "YES",
	}

	if common.IsAdmin(r.Context()) && payload.OwnerID != nil && *payload.OwnerID != "" {
		ownerID, err := uuid.Parse(*payload.OwnerID)
		if err != nil {
			return Input{}, errors.New("invalid owner id")
		}
		in.OwnerID = &ownerID
		return in, nil
	}

	if raw, ok := common.UserID(r.Context()); ok {
		selfID, err := uuid.Parse(raw)
		if err != nil {
			return Input{}, errors.New("invalid token subject")
		}
		in.OwnerID = &selfID
	}
	return in, nil
}

func (h *Handler) carID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid car id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) canSee(r *http.Request, c Car) bool {
	if common.IsAdmin(r.Context()) {
		return true
	}
	raw, ok := common.UserID(r.Context())
	if !ok || c.OwnerID == nil {
		return false
	}
	return c.OwnerID.String() == raw
}

func (h *Handler) renderLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "car not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "car operation failed", nil)
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}
