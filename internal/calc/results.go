package calc

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-taxcalc/internal/common"
	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

// JobStatus is the lifecycle of an async recalculation.
type JobStatus string

const (
	JobQueued JobStatus = "queued"
	JobDone   JobStatus = "done"
	JobFailed JobStatus = "failed"
)

// ErrResultNotFound is returned for unknown or expired job ids.
var ErrResultNotFound = errors.New("calculation result not found")

// JobResult is what GET /calculations/async/{id} returns.
type JobResult struct {
	JobID     string            `json:"jobId"`
	Status    JobStatus         `json:"status"`
	Document  *taxes.Document   `json:"document,omitempty"`
	Error     *common.ErrorBody `json:"error,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Results keeps async job outcomes under calc:result:<jobId>.
type Results struct {
	cache *Cache
	now   func() time.Time
}

// NewResults constructs a result store whose entries expire after ttl.
func NewResults(client *redis.Client, ttl time.Duration) *Results {
	return &Results{cache: NewCache(client, "calc:result:", ttl), now: time.Now}
}

// Put stores r, stamping UpdatedAt.
func (s *Results) Put(ctx context.Context, r JobResult) error {
	r.UpdatedAt = s.now().UTC()
	return s.cache.SetJSON(ctx, r.JobID, r)
}

// Get returns the stored result for jobID.
func (s *Results) Get(ctx context.Context, jobID string) (JobResult, error) {
	var r JobResult
	ok, err := s.cache.GetJSON(ctx, jobID, &r)
	if err != nil {
		return JobResult{}, err
	}
	if !ok {
		return JobResult{}, ErrResultNotFound
	}
	return r, nil
}
