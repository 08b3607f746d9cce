package car

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/westgate-auto/backend-westgate/internal/obs"
	"github.com/westgate-auto/backend-westgate/internal/pricing"
)

// RecalcStore captures the persistence the bulk recalculation requires.
type RecalcStore interface {
	CarsForRecalc(ctx context.Context, ownerID *uuid.UUID) ([]Car, error)
	UpdateCarFees(ctx context.Context, id uuid.UUID, fees pricing.Breakdown) error
}

// Failure identifies one car that could not be repriced, keyed by VIN so
// admins can find it without translating ids.
type Failure struct {
	VIN    string `json:"vin"`
	Reason string `json:"reason"`
}

// Result summarises one bulk recalculation run.
type Result struct {
	Updated  int       `json:"updated"`
	Failures []Failure `json:"failures,omitempty"`
}

// Recalculator reprices the whole fleet after an override or rate sheet
// change. Cars are processed sequentially: a failure on one car is recorded
// and the run continues, so a single bad row cannot block a fleet-wide
// repricing.
type Recalculator struct {
	Store   RecalcStore
	Pricing Quoter
	Logger  *zerolog.Logger
}

// Run reprices every car, or only one owner's cars when ownerID is set.
// Context cancellation is honoured between cars and aborts the run with
// whatever progress was made.
func (r *Recalculator) Run(ctx context.Context, ownerID *uuid.UUID) (Result, error) {
	start := time.Now()
	cars, err := r.Store.CarsForRecalc(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, c := range cars {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fees, err := r.Pricing.Quote(ctx, c.quoteInput(), c.OwnerID)
		if err != nil {
			res.Failures = append(res.Failures, Failure{VIN: c.VIN, Reason: err.Error()})
			obs.CountRecalcCar("failed")
			continue
		}
		if err := r.Store.UpdateCarFees(ctx, c.ID, fees); err != nil {
			res.Failures = append(res.Failures, Failure{VIN: c.VIN, Reason: err.Error()})
			obs.CountRecalcCar("failed")
			continue
		}
		res.Updated++
		obs.CountRecalcCar("updated")
	}

	obs.ObserveRecalcDuration(obs.DurationMillis(time.Since(start)))
	if r.Logger != nil {
		r.Logger.Info().
			Int("updated", res.Updated).
			Int("failed", len(res.Failures)).
			Dur("took", time.Since(start)).
			Msg("fleet fee recalculation finished")
	}
	return res, nil
}
