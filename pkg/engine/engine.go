package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/assets"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/observability"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
	"github.com/mdsxbm/tapcanvas/pkg/transport"
)

// CredentialResolver is the credential surface the engine needs.
type CredentialResolver interface {
	Resolve(ctx context.Context, userID, vendor, modelKey string) (*provider.Context, error)
	Profile(ctx context.Context, userID, profileID string) (vendor, modelKey string, err error)
	RecordOutcome(ctx context.Context, pc *provider.Context, callErr error)
}

// Rehoster moves vendor asset URLs into owned storage.
type Rehoster interface {
	Rehost(ctx context.Context, meta assets.Meta, in []api.TaskAsset) []api.TaskAsset
}

// Target names the vendor of a task directly or through a model profile.
type Target struct {
	Vendor    string
	ProfileID string
}

// Engine dispatches tasks to vendor adapters. It implements
// transport.TaskExecutor.
type Engine struct {
	registry *provider.Registry
	resolver CredentialResolver
	emitter  Emitter
	rehoster Rehoster
	cfg      Config
}

// Ensure Engine implements transport.TaskExecutor at compile time.
var _ transport.TaskExecutor = (*Engine)(nil)

// New creates an Engine. The registry and resolver must not be nil; the
// emitter and rehoster may be.
func New(registry *provider.Registry, resolver CredentialResolver, emitter Emitter, rehoster Rehoster, cfg Config) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine: registry must not be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("engine: resolver must not be nil")
	}
	if cfg.Validation == (api.ValidationConfig{}) {
		cfg.Validation = api.DefaultValidationConfig()
	}
	return &Engine{
		registry: registry,
		resolver: resolver,
		emitter:  emitter,
		rehoster: rehoster,
		cfg:      cfg,
	}, nil
}

// Submit validates a POST /tasks body and executes it.
func (e *Engine) Submit(ctx context.Context, userID string, req *api.SubmitTaskRequest) (*api.TaskResult, error) {
	if apiErr := api.ValidateSubmit(req, e.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}
	return e.Execute(ctx, userID, Target{Vendor: req.Vendor, ProfileID: req.ProfileID}, req.Request)
}

// Execute runs one task for userID. The returned result is terminal
// (succeeded or failed) for synchronous vendors and running, with the
// vendor job id in raw.taskId, for vendors polled by the client.
func (e *Engine) Execute(ctx context.Context, userID string, target Target, req api.TaskRequest) (res *api.TaskResult, err error) {
	if apiErr := api.ValidateTaskRequest(&req, e.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}

	vendor, modelKey, err := e.target(ctx, userID, target)
	if err != nil {
		return nil, err
	}
	if m := req.ModelKey(); m != "" {
		modelKey = m
	}

	adapter, err := e.registry.Lookup(vendor)
	if err != nil {
		return nil, err
	}
	vendor = adapter.Name()
	if err := provider.Check(adapter, req.Kind); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "engine.execute",
		attribute.String("vendor", vendor),
		attribute.String("kind", string(req.Kind)),
	)
	start := time.Now()
	defer func() {
		status := "error"
		switch {
		case res != nil:
			status = string(res.Status)
		case transport.IsCanceled(err):
			status = "canceled"
		}
		observability.TasksTotal.WithLabelValues(vendor, string(req.Kind), status).Inc()
		observability.TaskDuration.WithLabelValues(vendor, string(req.Kind)).Observe(time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	lc := newLifecycle(e.emitter, userID, vendor, &req)
	lc.queued()

	pc, err := e.resolver.Resolve(ctx, userID, vendor, modelKey)
	if err != nil {
		lc.failed(err)
		return nil, err
	}
	if lc.active() {
		pc.OnProgress = lc.report
	}

	lc.running(e.cfg.startProgress(), "")
	debug.Log(debug.Dispatch, "invoking adapter", "user", userID, "vendor", vendor, "kind", req.Kind, "model", modelKey, "node", req.NodeID())

	res, err = provider.Run(ctx, adapter, pc, &req)
	e.resolver.RecordOutcome(ctx, pc, err)
	if err == nil && res == nil {
		err = api.NewMalformedUpstreamError(vendor, "adapter returned no result")
	}
	if err != nil {
		lc.failed(err)
		return nil, err
	}

	e.normalize(res, vendor, req.Kind)
	if res.Status == api.TaskStatusSucceeded {
		res.Assets = e.rehost(ctx, assets.Meta{
			UserID:   userID,
			Vendor:   vendor,
			Kind:     req.Kind,
			Prompt:   req.Prompt,
			ModelKey: modelOf(res, pc, modelKey),
		}, res.Assets)
	}
	lc.finish(res)
	debug.Log(debug.Dispatch, "task finished", "vendor", vendor, "kind", req.Kind, "status", res.Status, "task", res.ID, "assets", len(res.Assets))
	return res, nil
}

// FetchResult polls a client-driven vendor job once. It is idempotent:
// rehosting and asset records are keyed by URL.
func (e *Engine) FetchResult(ctx context.Context, userID, vendor string, req *api.FetchResultRequest) (res *api.TaskResult, err error) {
	if apiErr := api.ValidateFetchResult(req); apiErr != nil {
		return nil, apiErr
	}
	adapter, err := e.registry.Lookup(vendor)
	if err != nil {
		return nil, err
	}
	vendor = adapter.Name()
	fetcher, ok := adapter.(provider.ResultFetcher)
	if !ok {
		return nil, api.NewUnsupportedOperationError(vendor, "fetch_result")
	}

	ctx, span := observability.StartSpan(ctx, "engine.fetch_result",
		attribute.String("vendor", vendor),
		attribute.String("task_id", req.TaskID),
	)
	defer func() { observability.EndSpan(span, err) }()

	pc, err := e.resolver.Resolve(ctx, userID, vendor, "")
	if err != nil {
		return nil, err
	}
	taskID := strings.TrimSpace(req.TaskID)
	res, err = fetcher.FetchResult(ctx, pc, taskID, req.Prompt)
	e.resolver.RecordOutcome(ctx, pc, err)
	if err == nil && res == nil {
		err = api.NewMalformedUpstreamError(vendor, "adapter returned no result")
	}
	if err != nil {
		return nil, err
	}

	if res.Kind == "" {
		res.Kind = api.TaskKindTextToVideo
	}
	e.normalize(res, vendor, res.Kind)
	if res.ID == "" || api.IsEngineTaskID(res.ID) {
		res.ID = taskID
	}
	if res.Status == api.TaskStatusSucceeded {
		res.Assets = e.rehost(ctx, assets.Meta{
			UserID:   userID,
			Vendor:   vendor,
			Kind:     res.Kind,
			Prompt:   req.Prompt,
			ModelKey: res.RawString("model"),
		}, res.Assets)
	}
	debug.Log(debug.Dispatch, "fetched result", "vendor", vendor, "task", taskID, "status", res.Status, "assets", len(res.Assets))
	return res, nil
}

func (e *Engine) target(ctx context.Context, userID string, t Target) (vendor, modelKey string, err error) {
	if id := strings.TrimSpace(t.ProfileID); id != "" {
		return e.resolver.Profile(ctx, userID, id)
	}
	vendor = strings.TrimSpace(t.Vendor)
	if vendor == "" {
		return "", "", api.NewInvalidRequestError("vendor", "either vendor or profileId is required")
	}
	return vendor, "", nil
}

// normalize fills the fields adapters may leave empty. A result without a
// status is succeeded when it carries assets or text, running otherwise.
func (e *Engine) normalize(res *api.TaskResult, vendor string, kind api.TaskKind) {
	res.SetRaw("vendor", vendor)
	if res.Kind == "" {
		res.Kind = kind
	}
	if res.Status == "" {
		res.Status = api.TaskStatusRunning
		if len(res.Assets) > 0 || res.RawString("text") != "" {
			res.Status = api.TaskStatusSucceeded
		}
	}
	if res.ID == "" {
		res.ID = res.RawString("taskId")
	}
	if res.ID == "" {
		res.ID = api.NewTaskID()
	}
	if res.Status == api.TaskStatusSucceeded && len(res.Assets) == 0 && requiresAssets(res.Kind) {
		// No derivable media on a nominal success: keep polling.
		res.Status = api.TaskStatusRunning
	}
}

func (e *Engine) rehost(ctx context.Context, meta assets.Meta, in []api.TaskAsset) []api.TaskAsset {
	if e.rehoster == nil || len(in) == 0 {
		return in
	}
	return e.rehoster.Rehost(ctx, meta, in)
}

func requiresAssets(kind api.TaskKind) bool {
	switch kind {
	case api.TaskKindTextToImage, api.TaskKindImageEdit, api.TaskKindTextToVideo, api.TaskKindImageToVideo:
		return true
	}
	return false
}

func modelOf(res *api.TaskResult, pc *provider.Context, fallback string) string {
	if m := res.RawString("model"); m != "" {
		return m
	}
	if pc != nil && pc.ModelKey != "" {
		return pc.ModelKey
	}
	return fallback
}
