// Package mcpserver exposes the task engine as Model Context Protocol tools
// over streamable HTTP. Every session is bound to the user authenticated on
// the request that opened it.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/auth"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/transport"
)

// Tool names.
const (
	ToolSubmitTask   = "submit_task"
	ToolFetchResult  = "fetch_task_result"
	ToolPendingTasks = "list_pending_tasks"
)

// Server builds per-user MCP servers.
type Server struct {
	executor transport.TaskExecutor
	progress transport.ProgressSource
	impl     *mcp.Implementation
}

// New creates a Server. progress may be nil, which omits the pending tool.
func New(executor transport.TaskExecutor, progress transport.ProgressSource, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{
		executor: executor,
		progress: progress,
		impl:     &mcp.Implementation{Name: "tapcanvas", Version: version},
	}
}

// Handler returns the streamable HTTP handler. It must run behind the auth
// middleware.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.ServerFor(auth.UserID(r.Context()))
	}, nil)
}

// FetchInput names a vendor job to poll.
type FetchInput struct {
	Vendor string `json:"vendor" jsonschema:"vendor that created the job, e.g. veo or sora2api"`
	TaskID string `json:"taskId" jsonschema:"vendor job id returned by submit_task"`
	Prompt string `json:"prompt,omitempty" jsonschema:"original prompt, used to name stored assets"`
}

// PendingInput filters pending snapshots.
type PendingInput struct {
	Vendor string `json:"vendor,omitempty" jsonschema:"only return tasks of this vendor"`
}

// PendingOutput lists pending snapshots.
type PendingOutput struct {
	Tasks []api.ProgressSnapshot `json:"tasks"`
}

// ServerFor returns an MCP server whose tools act as userID.
func (s *Server) ServerFor(userID string) *mcp.Server {
	server := mcp.NewServer(s.impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSubmitTask,
		Description: "Run a generation task (chat, image, video) on a vendor or model profile",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in api.SubmitTaskRequest) (*mcp.CallToolResult, api.TaskResult, error) {
		debug.Log(debug.Transport, "mcp submit", "user", userID, "vendor", in.Vendor, "kind", in.Request.Kind)
		res, err := s.executor.Submit(ctx, userID, &in)
		return toolResult(res, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolFetchResult,
		Description: "Poll a vendor job created by submit_task once",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in FetchInput) (*mcp.CallToolResult, api.TaskResult, error) {
		res, err := s.executor.FetchResult(ctx, userID, in.Vendor, &api.FetchResultRequest{TaskID: in.TaskID, Prompt: in.Prompt})
		return toolResult(res, err)
	})

	if s.progress != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        ToolPendingTasks,
			Description: "List recent progress of tasks on vendors that do not stream",
		}, func(_ context.Context, _ *mcp.CallToolRequest, in PendingInput) (*mcp.CallToolResult, PendingOutput, error) {
			out := PendingOutput{Tasks: s.progress.Pending(userID, in.Vendor)}
			if out.Tasks == nil {
				out.Tasks = []api.ProgressSnapshot{}
			}
			return nil, out, nil
		})
	}

	return server
}

// toolResult renders an executor outcome. Errors and failed tasks are tool
// errors carrying the JSON error envelope.
func toolResult(res *api.TaskResult, err error) (*mcp.CallToolResult, api.TaskResult, error) {
	if err == nil && res == nil {
		err = api.NewServerError("executor returned no result")
	}
	if err != nil {
		return errorResult(transport.ToAPIError(err)), api.TaskResult{}, nil
	}
	if res.Status == api.TaskStatusFailed {
		reason := res.RawString("failureReason")
		if reason == "" {
			reason = "vendor reported the task as failed"
		}
		vendor := res.RawString("vendor")
		apiErr := api.NewUpstreamError(vendor, 0, reason, nil)
		apiErr.Details = map[string]any{"vendor": vendor, "taskId": res.ID, "kind": res.Kind, "raw": res.Raw}
		return errorResult(apiErr), api.TaskResult{}, nil
	}
	data, mErr := json.Marshal(res)
	if mErr != nil {
		return nil, api.TaskResult{}, fmt.Errorf("encoding result: %w", mErr)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, *res, nil
}

func errorResult(apiErr *api.APIError) *mcp.CallToolResult {
	data, _ := json.Marshal(apiErr.Envelope())
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
