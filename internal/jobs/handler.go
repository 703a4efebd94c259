package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-taxcalc/internal/calc"
	"github.com/noah-isme/backend-taxcalc/internal/common"
	"github.com/noah-isme/backend-taxcalc/internal/lock"
	"github.com/noah-isme/backend-taxcalc/internal/obs"
)

// Handler processes recalculation tasks.
type Handler struct {
	Service *calc.Service
	Results *calc.Results
	Locker  lock.Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// NewServeMux routes recalculation tasks to h.
func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRecalculate, h.ProcessRecalculate)
	return mux
}

// ProcessRecalculate calculates the task's document while holding the
// document's lock and stores the outcome for polling. Documents the engine
// rejects are stored as failed and not retried; a held lock or a store
// failure is returned so asynq retries later.
func (h *Handler) ProcessRecalculate(ctx context.Context, t *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		obs.IncCounter(obs.RecalcTasksTotal, "malformed")
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.JobID == "" {
		obs.IncCounter(obs.RecalcTasksTotal, "malformed")
		return fmt.Errorf("payload without job id: %w", asynq.SkipRetry)
	}
	logger := h.Logger.With().Str("job_id", p.JobID).Str("doc_name", p.Document.Name).Logger()
	ctx = logger.WithContext(ctx)

	err := h.Locker.TryWithLock(ctx, lockKey(p), h.LockTTL, func(ctx context.Context) error {
		return h.recalculate(ctx, p)
	})
	switch {
	case err == nil:
		obs.IncCounter(obs.RecalcTasksTotal, "done")
		logger.Info().Msg("recalculation done")
		return nil
	case errors.Is(err, asynq.SkipRetry):
		obs.IncCounter(obs.RecalcTasksTotal, "rejected")
		logger.Warn().Err(err).Msg("recalculation rejected")
		return err
	case errors.Is(err, lock.ErrHeld):
		obs.IncCounter(obs.RecalcTasksTotal, "locked")
		logger.Debug().Msg("document busy, retrying later")
		return err
	default:
		obs.IncCounter(obs.RecalcTasksTotal, "error")
		logger.Error().Err(err).Msg("recalculation failed")
		return err
	}
}

func (h *Handler) recalculate(ctx context.Context, p Payload) error {
	doc, err := h.Service.Calculate(ctx, p.Document)
	if err != nil {
		var appErr *common.AppError
		if !errors.As(err, &appErr) || appErr.HTTPStatus >= http.StatusInternalServerError {
			return err
		}
		failed := calc.JobResult{
			JobID:  p.JobID,
			Status: calc.JobFailed,
			Error:  &common.ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		}
		if perr := h.Results.Put(ctx, failed); perr != nil {
			return perr
		}
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return h.Results.Put(ctx, calc.JobResult{JobID: p.JobID, Status: calc.JobDone, Document: doc})
}

// lockKey serialises work per document; anonymous documents lock on the job.
func lockKey(p Payload) string {
	if p.Document.Name != "" {
		return "calc:lock:" + p.Document.Name
	}
	return "calc:lock:" + p.JobID
}
