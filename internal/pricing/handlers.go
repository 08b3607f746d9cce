package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/westgate-auto/backend-westgate/internal/common"
	"github.com/westgate-auto/backend-westgate/internal/obs"
	"github.com/westgate-auto/backend-westgate/internal/rates"
)

// AdminStore captures the write-side persistence used by the admin endpoints.
type AdminStore interface {
	UpsertUserOverride(ctx context.Context, userID uuid.UUID, ov Override) (OverrideRecord, error)
	UpsertDefaultOverride(ctx context.Context, ov Override) (OverrideRecord, error)
	DeactivateOverride(ctx context.Context, id uuid.UUID) error
	ListOverrides(ctx context.Context, limit int32) ([]OverrideRecord, error)
	InsertVersion(ctx context.Context, name, description, csvText string) (SheetVersion, error)
	ActivateVersion(ctx context.Context, id uuid.UUID) error
	ListVersions(ctx context.Context) ([]SheetVersion, error)
}

// Handler exposes the quote endpoint and administrative pricing management.
type Handler struct {
	Svc      *Service
	Store    AdminStore
	Validate *validator.Validate
}

type quotePayload struct {
	Auction         string  `json:"auction" validate:"required"`
	AuctionLocation string  `json:"auction_location" validate:"required"`
	Port            string  `json:"port" validate:"required"`
	BodyType        string  `json:"body_type"`
	FuelType        string  `json:"fuel_type"`
	PurchasePrice   float64 `json:"purchase_price" validate:"gte=0"`
	Insurance       string  `json:"insurance" validate:"omitempty,oneof=YES NO"`
	UserID          *string `json:"user_id"`
}

type overridePayload struct {
	OceanRates      []rates.OceanRate `json:"ocean_rates"`
	GroundFeeDelta  float64           `json:"ground_fee_delta"`
	PickupSurcharge *float64          `json:"pickup_surcharge"`
	ServiceFee      *float64          `json:"service_fee"`
	HybridSurcharge *float64          `json:"hybrid_surcharge"`
	Active          *bool             `json:"active"`
}

type uploadPayload struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	CSVText     string `json:"csv_text" validate:"required"`
}

// Quote prices a prospective car interactively. The override applied is the
// caller's own unless an explicit user_id is supplied (admin calculators).
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	var payload quotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	userID, err := h.quoteUserID(r, payload.UserID)
	if errors.Is(err, errExplicitUserForbidden) {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "user_id requires administrator access", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}

	breakdown, err := h.Svc.Quote(r.Context(), QuoteInput{
		Auction:         rates.ParseAuction(payload.Auction),
		AuctionLocation: payload.AuctionLocation,
		Port:            payload.Port,
		BodyType:        payload.BodyType,
		FuelType:        payload.FuelType,
		PurchasePrice:   payload.PurchasePrice,
		Insurance:       payload.Insurance == "YES",
	}, userID)
	if err != nil {
		obs.CountQuote("error")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to compute quote", nil)
		return
	}
	obs.CountQuote("ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdown})
}

// Template serves the downloadable sheet template admins start from.
func (h *Handler) Template(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ground-rates-template.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rates.Template()))
}

// ListOverrides returns override history, newest first.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListOverrides(r.Context(), 100)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list overrides", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": records})
}

// UpsertDefaultOverride replaces the system-wide override.
func (h *Handler) UpsertDefaultOverride(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeOverride(w, r)
	if !ok {
		return
	}
	record, err := h.Store.UpsertDefaultOverride(r.Context(), payload)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to save override", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": record})
}

// UpsertUserOverride replaces the override for one user.
func (h *Handler) UpsertUserOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	payload, ok := h.decodeOverride(w, r)
	if !ok {
		return
	}
	record, err := h.Store.UpsertUserOverride(r.Context(), userID, payload)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to save override", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": record})
}

// DeactivateOverride soft-disables one override row, reverting its scope to
// the next source in the precedence chain.
func (h *Handler) DeactivateOverride(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid override id", nil)
		return
	}
	if err := h.Store.DeactivateOverride(r.Context(), id); err != nil {
		if errors.Is(err, ErrOverrideNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "override not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to deactivate override", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deactivated": true}})
}

// ListVersions returns sheet version metadata, newest first.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.Store.ListVersions(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list versions", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": versions})
}

// UploadVersion validates and stores a new immutable sheet version. A sheet
// that fails validation is rejected with the complete error list so the admin
// can fix the file in one pass.
func (h *Handler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	var payload uploadPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	validation := rates.ValidateCSV(payload.CSVText)
	if !validation.Valid {
		obs.CountSheetUpload("rejected")
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_SHEET", "sheet failed validation", validation.Errors)
		return
	}

	version, err := h.Store.InsertVersion(r.Context(), strings.TrimSpace(payload.Name), strings.TrimSpace(payload.Description), payload.CSVText)
	if err != nil {
		obs.CountSheetUpload("error")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to store version", nil)
		return
	}
	obs.CountSheetUpload("ok")
	common.JSON(w, http.StatusCreated, map[string]any{"data": version})
}

// ActivateVersion flips the active sheet and invalidates the cache.
func (h *Handler) ActivateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid version id", nil)
		return
	}
	if err := h.Store.ActivateVersion(r.Context(), id); err != nil {
		if errors.Is(err, ErrVersionNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "version not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to activate version", nil)
		return
	}
	if h.Svc != nil && h.Svc.Cache != nil {
		if err := h.Svc.Cache.Invalidate(r.Context()); err != nil && h.Svc.Logger != nil {
			h.Svc.Logger.Warn().Err(err).Msg("invalidate sheet cache")
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"activated": true}})
}

func (h *Handler) decodeOverride(w http.ResponseWriter, r *http.Request) (Override, bool) {
	var payload overridePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Override{}, false
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	return Override{
		OceanRates:      payload.OceanRates,
		GroundFeeDelta:  payload.GroundFeeDelta,
		PickupSurcharge: payload.PickupSurcharge,
		ServiceFee:      payload.ServiceFee,
		HybridSurcharge: payload.HybridSurcharge,
		Active:          active,
	}, true
}

var errExplicitUserForbidden = errors.New("pricing: explicit user_id requires admin")

// quoteUserID resolves whose overrides apply to the quote. An explicit
// user_id (admin calculators pricing on behalf of a customer) is honoured
// only for admins; everyone else quotes as themselves.
func (h *Handler) quoteUserID(r *http.Request, explicit *string) (*uuid.UUID, error) {
	raw := ""
	if explicit != nil && strings.TrimSpace(*explicit) != "" {
		if !common.IsAdmin(r.Context()) {
			return nil, errExplicitUserForbidden
		}
		raw = strings.TrimSpace(*explicit)
	} else if ctxUser, ok := common.UserID(r.Context()); ok {
		raw = ctxUser
	}
	if raw == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}
