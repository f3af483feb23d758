package transport

import (
	"context"
	"testing"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

func TestExecutorFuncsAdapter(t *testing.T) {
	var gotVendor string
	var gotUser string

	fn := ExecutorFuncs{
		SubmitFunc: func(_ context.Context, userID string, req *api.SubmitTaskRequest) (*api.TaskResult, error) {
			gotUser = userID
			return &api.TaskResult{ID: "t1", Kind: req.Request.Kind, Status: api.TaskStatusSucceeded}, nil
		},
		FetchFunc: func(_ context.Context, _, vendor string, req *api.FetchResultRequest) (*api.TaskResult, error) {
			gotVendor = vendor
			return &api.TaskResult{ID: req.TaskID, Status: api.TaskStatusRunning}, nil
		},
	}

	// Verify it satisfies the interface.
	var _ TaskExecutor = fn

	res, err := fn.Submit(context.Background(), "u1", &api.SubmitTaskRequest{Vendor: "qwen", Request: api.TaskRequest{Kind: api.TaskKindChat}})
	if err != nil || res.Kind != api.TaskKindChat || gotUser != "u1" {
		t.Errorf("Submit = %+v, %v (user %q)", res, err, gotUser)
	}

	res, err = fn.FetchResult(context.Background(), "u1", "veo", &api.FetchResultRequest{TaskID: "job-1"})
	if err != nil || res.ID != "job-1" || gotVendor != "veo" {
		t.Errorf("FetchResult = %+v, %v (vendor %q)", res, err, gotVendor)
	}
}
