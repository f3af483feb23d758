package transport

import (
	"context"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/progress"
)

// TaskExecutor runs generation tasks on behalf of an authenticated user.
type TaskExecutor interface {
	// Submit validates and executes a POST /tasks body.
	Submit(ctx context.Context, userID string, req *api.SubmitTaskRequest) (*api.TaskResult, error)

	// FetchResult polls a vendor job once. It is idempotent.
	FetchResult(ctx context.Context, userID, vendor string, req *api.FetchResultRequest) (*api.TaskResult, error)
}

// ExecutorFuncs adapts a pair of functions to TaskExecutor.
type ExecutorFuncs struct {
	SubmitFunc func(ctx context.Context, userID string, req *api.SubmitTaskRequest) (*api.TaskResult, error)
	FetchFunc  func(ctx context.Context, userID, vendor string, req *api.FetchResultRequest) (*api.TaskResult, error)
}

// Submit calls SubmitFunc.
func (f ExecutorFuncs) Submit(ctx context.Context, userID string, req *api.SubmitTaskRequest) (*api.TaskResult, error) {
	return f.SubmitFunc(ctx, userID, req)
}

// FetchResult calls FetchFunc.
func (f ExecutorFuncs) FetchResult(ctx context.Context, userID, vendor string, req *api.FetchResultRequest) (*api.TaskResult, error) {
	return f.FetchFunc(ctx, userID, vendor, req)
}

// ProgressSource is the read side of the progress bus.
type ProgressSource interface {
	// Subscribe registers a live subscription for userID. It ends when ctx
	// is done or the subscription is closed.
	Subscribe(ctx context.Context, userID string) *progress.Subscription

	// Pending returns retained snapshots of store-only vendors.
	Pending(userID, vendor string) []api.ProgressSnapshot
}

// HealthChecker reports whether a backing service is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
