package car

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/westgate-auto/backend-westgate/internal/lock"
)

// TaskRecalculate is the asynq task type for bulk fee recalculation.
const TaskRecalculate = "pricing:recalculate"

const recalcLockKey = "lock:pricing:recalculate"

type recalculatePayload struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
}

// NewRecalculateTask builds the recalculation task. With a nil ownerID the
// run covers the whole fleet, otherwise only that owner's cars.
func NewRecalculateTask(ownerID *uuid.UUID) *asynq.Task {
	payload, _ := json.Marshal(recalculatePayload{UserID: ownerID})
	return asynq.NewTask(TaskRecalculate, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
}

// TaskHandler processes recalculation tasks. A Redis lock serialises runs so
// two admins triggering a recalculation cannot interleave fee writes.
type TaskHandler struct {
	Recalc  *Recalculator
	Locker  lock.Locker
	LockTTL time.Duration
	Logger  *zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h *TaskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload recalculatePayload
	if raw := task.Payload(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("car: decode recalculate payload: %w", err)
		}
	}
	ttl := h.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return h.Locker.WithLock(ctx, recalcLockKey, ttl, func(ctx context.Context) error {
		res, err := h.Recalc.Run(ctx, payload.UserID)
		if err != nil {
			return err
		}
		if len(res.Failures) > 0 && h.Logger != nil {
			for _, f := range res.Failures {
				h.Logger.Warn().Str("vin", f.VIN).Str("reason", f.Reason).Msg("car skipped during recalculation")
			}
		}
		return nil
	})
}
