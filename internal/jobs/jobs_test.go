package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-taxcalc/internal/calc"
	"github.com/noah-isme/backend-taxcalc/internal/lock"
	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

type harness struct {
	mr      *miniredis.Miniredis
	handler *Handler
	results *calc.Results
}

func newHarness(t *testing.T) harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	results := calc.NewResults(client, time.Hour)
	return harness{
		mr:      mr,
		results: results,
		handler: &Handler{
			Service: calc.NewService(calc.ServiceConfig{}),
			Results: results,
			Locker:  lock.Locker{R: client},
			LockTTL: time.Second,
			Logger:  zerolog.Nop(),
		},
	}
}

func order(name string, taxLines ...taxes.TaxLine) calc.Request {
	return calc.Request{Document: taxes.Document{
		Name:  name,
		Type:  taxes.DocPurchaseOrder,
		Items: []taxes.LineItem{{ItemCode: "BOLT", Qty: decimal.NewFromInt(10), Rate: decimal.NewFromInt(3)}},
		Taxes: taxLines,
	}}
}

func task(t *testing.T, jobID string, req calc.Request) *asynq.Task {
	t.Helper()
	tk, err := NewRecalculateTask(jobID, req, 3)
	require.NoError(t, err)
	return tk
}

func TestProcessStoresResult(t *testing.T) {
	h := newHarness(t)
	req := order("PO-1", taxes.TaxLine{ChargeType: taxes.ChargeOnNetTotal, Rate: decimal.NewFromInt(5)})

	require.NoError(t, h.handler.ProcessRecalculate(context.Background(), task(t, "job-1", req)))

	res, err := h.results.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, calc.JobDone, res.Status)
	require.Equal(t, "31.5", res.Document.GrandTotal.String())
	require.False(t, h.mr.Exists("calc:lock:PO-1"), "lock released")
}

func TestProcessInvalidDocumentSkipsRetry(t *testing.T) {
	h := newHarness(t)
	req := order("PO-2", taxes.TaxLine{ChargeType: taxes.ChargeOnPreviousRowAmount, RowReference: 1, Rate: decimal.NewFromInt(5)})

	err := h.handler.ProcessRecalculate(context.Background(), task(t, "job-2", req))
	require.ErrorIs(t, err, asynq.SkipRetry)

	res, err := h.results.Get(context.Background(), "job-2")
	require.NoError(t, err)
	require.Equal(t, calc.JobFailed, res.Status)
	require.Equal(t, "INVALID_DOCUMENT", res.Error.Code)
	require.Nil(t, res.Document)
}

func TestProcessRetriesWhileDocumentLocked(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.mr.Set("calc:lock:PO-3", "other-worker"))

	err := h.handler.ProcessRecalculate(context.Background(), task(t, "job-3", order("PO-3")))
	require.ErrorIs(t, err, lock.ErrHeld)
	require.False(t, errors.Is(err, asynq.SkipRetry))

	_, err = h.results.Get(context.Background(), "job-3")
	require.ErrorIs(t, err, calc.ErrResultNotFound)
}

func TestProcessMalformedPayload(t *testing.T) {
	h := newHarness(t)
	err := h.handler.ProcessRecalculate(context.Background(), asynq.NewTask(TypeRecalculate, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h.handler.ProcessRecalculate(context.Background(), asynq.NewTask(TypeRecalculate, []byte(`{"document":{}}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLockKeyFallsBackToJobID(t *testing.T) {
	require.Equal(t, "calc:lock:SINV-1", lockKey(Payload{JobID: "j", Document: order("SINV-1")}))
	require.Equal(t, "calc:lock:j", lockKey(Payload{JobID: "j"}))
}

type stubTasks struct {
	got *asynq.Task
	err error
}

func (s *stubTasks) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.got = task
	return &asynq.TaskInfo{ID: "x"}, s.err
}

func TestClientEnqueue(t *testing.T) {
	stub := &stubTasks{}
	c := &Client{tasks: stub, maxRetry: 5}

	require.NoError(t, c.Enqueue(context.Background(), "job-9", order("PO-9")))
	require.Equal(t, TypeRecalculate, stub.got.Type())

	var p Payload
	require.NoError(t, json.Unmarshal(stub.got.Payload(), &p))
	require.Equal(t, "job-9", p.JobID)
	require.Equal(t, "PO-9", p.Document.Name)

	stub.err = errors.New("broker down")
	require.ErrorContains(t, c.Enqueue(context.Background(), "job-10", order("PO-10")), "broker down")
}

func TestServeMuxRoutesRecalculate(t *testing.T) {
	h := newHarness(t)
	mux := NewServeMux(h.handler)
	require.NoError(t, mux.ProcessTask(context.Background(), task(t, "job-11", order(""))))

	res, err := h.results.Get(context.Background(), "job-11")
	require.NoError(t, err)
	require.Equal(t, "30", res.Document.GrandTotal.String())
}
