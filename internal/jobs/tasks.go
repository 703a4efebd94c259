// Package jobs runs document recalculations on the asynq worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-taxcalc/internal/calc"
)

// TypeRecalculate is the asynq task type for a document recalculation.
const TypeRecalculate = "calc:recalculate"

// QueueDefault is the queue recalculations are enqueued on.
const QueueDefault = "calc"

// Payload is the JSON body of a recalculation task.
type Payload struct {
	JobID    string       `json:"jobId"`
	Document calc.Request `json:"document"`
}

// NewRecalculateTask builds a task for jobID. The job id doubles as the asynq
// task id, so re-enqueueing the same job is rejected by the broker.
func NewRecalculateTask(jobID string, req calc.Request, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(Payload{JobID: jobID, Document: req})
	if err != nil {
		return nil, fmt.Errorf("marshal recalculate payload: %w", err)
	}
	return asynq.NewTask(TypeRecalculate, payload,
		asynq.TaskID(jobID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(time.Minute),
	), nil
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues recalculations. It satisfies calc.Enqueuer.
type Client struct {
	tasks    taskEnqueuer
	maxRetry int
}

// NewClient wraps an asynq client.
func NewClient(c *asynq.Client, maxRetry int) *Client {
	return &Client{tasks: c, maxRetry: maxRetry}
}

// Enqueue schedules a recalculation for jobID.
func (c *Client) Enqueue(ctx context.Context, jobID string, req calc.Request) error {
	task, err := NewRecalculateTask(jobID, req, c.maxRetry)
	if err != nil {
		return err
	}
	if _, err := c.tasks.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeRecalculate, err)
	}
	return nil
}
