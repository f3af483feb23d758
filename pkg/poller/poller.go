// Package poller drives jobs of vendors whose create call only returns a job
// id. Poll is the server-bounded protocol: fixed interval, bounded attempts
// and bounded wall time. Observe interprets one status payload and is shared
// with the client-driven FetchResult path.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/observability"
	"github.com/mdsxbm/tapcanvas/pkg/provider/extract"
)

// ErrExhausted is returned when the attempt or wall-time limit is reached
// before the job reaches a terminal status.
var ErrExhausted = errors.New("poll attempts exhausted")

// Config bounds a server-side poll loop.
type Config struct {
	Interval    time.Duration
	MaxAttempts int

	// MaxWait caps total wall time; 0 means Interval * MaxAttempts plus slack.
	MaxWait time.Duration
}

// DefaultConfig polls every 2s, 20 times.
func DefaultConfig() Config {
	return Config{Interval: 2 * time.Second, MaxAttempts: 20}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.MaxWait <= 0 {
		c.MaxWait = c.Interval*time.Duration(c.MaxAttempts) + time.Minute
	}
	return c
}

// Observation is one interpreted status payload.
type Observation struct {
	Status        api.TaskStatus
	URLs          []string
	Progress      float64
	HasProgress   bool
	FailureReason string
}

// Observe normalizes the vendor status, extracts media with chain (the
// default chain when nil) and applies the succeeded-without-media rule.
func Observe(p extract.Payload, chain extract.Chain) Observation {
	if chain == nil {
		chain = extract.MediaURLs
	}
	o := Observation{
		Status: extract.NormalizeStatus(extract.RawStatus(p)),
		URLs:   chain.All(p),
	}
	first := ""
	if len(o.URLs) > 0 {
		first = o.URLs[0]
	}
	// A media URL without any status field means the job is done.
	if extract.RawStatus(p) == "" && first != "" {
		o.Status = api.TaskStatusSucceeded
	}
	o.Status = extract.SettleStatus(o.Status, first)
	o.Progress, o.HasProgress = extract.Progress(p)
	if o.Status == api.TaskStatusFailed {
		o.FailureReason = extract.FailureReason(p)
	}
	return o
}

// FetchFunc performs one status request. An error aborts polling at once.
type FetchFunc func(ctx context.Context, attempt int) (Observation, error)

// Poll calls fetch until it reports a terminal status, the limits are reached,
// or ctx is done. onTick, when non-nil, sees every non-terminal observation.
// On exhaustion the last observation is returned with ErrExhausted.
func Poll(ctx context.Context, vendor string, cfg Config, fetch FetchFunc, onTick func(Observation)) (Observation, error) {
	cfg = cfg.withDefaults()
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, cfg.MaxWait)
	defer cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()

	var last Observation
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return last, pollDone(parent)
		case <-timer.C:
		}

		obs, err := fetch(ctx, attempt)
		if err != nil {
			observability.PollAttempts.WithLabelValues(vendor, "error").Inc()
			if ctx.Err() != nil {
				return last, pollDone(parent)
			}
			return last, err
		}
		last = obs
		observability.PollAttempts.WithLabelValues(vendor, string(obs.Status)).Inc()
		debug.Log(debug.Poller, "poll", "vendor", vendor, "attempt", attempt, "status", obs.Status)

		if obs.Status.IsTerminal() {
			return obs, nil
		}
		if onTick != nil {
			onTick(obs)
		}
		timer.Reset(cfg.Interval)
	}
	return last, fmt.Errorf("%s: %w after %d attempts", vendor, ErrExhausted, cfg.MaxAttempts)
}

// pollDone distinguishes caller cancellation from the wall-time limit.
func pollDone(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: wall time exceeded", ErrExhausted)
}

// Result converts an observation into a task result. Succeeded observations
// carry one asset per extracted URL; failed ones carry the failure reason.
func (o Observation) Result(taskID string, kind api.TaskKind, assetType api.AssetType, thumbnailURL string) *api.TaskResult {
	res := &api.TaskResult{ID: taskID, Kind: kind, Status: o.Status}
	if taskID != "" {
		res.SetRaw("taskId", taskID)
	}
	if o.HasProgress {
		res.SetRaw("progress", o.Progress)
	}
	switch o.Status {
	case api.TaskStatusFailed:
		if o.FailureReason != "" {
			res.SetRaw("failureReason", o.FailureReason)
		}
	case api.TaskStatusSucceeded:
		for i, u := range o.URLs {
			a := api.TaskAsset{Type: assetType, URL: u}
			if i == 0 {
				a.ThumbnailURL = thumbnailURL
			}
			res.Assets = append(res.Assets, a)
		}
	}
	return res
}
