package engine

import (
	"sync"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/progress"
	"github.com/mdsxbm/tapcanvas/pkg/provider"
)

// Emitter receives progress updates for a user.
type Emitter interface {
	Emit(userID string, u progress.Update) api.ProgressSnapshot
}

// lifecycle reports one task's progress. It is inert when the request
// carries no node id. Status only moves forward; adapter reports may not
// finish the task, the dispatcher does that.
type lifecycle struct {
	emitter  Emitter
	userID   string
	vendor   string
	nodeID   string
	nodeKind string
	kind     api.TaskKind

	mu     sync.Mutex
	status api.TaskStatus
	taskID string
}

func newLifecycle(emitter Emitter, userID, vendor string, req *api.TaskRequest) *lifecycle {
	return &lifecycle{
		emitter:  emitter,
		userID:   userID,
		vendor:   vendor,
		nodeID:   req.NodeID(),
		nodeKind: req.NodeKind(),
		kind:     req.Kind,
	}
}

func (l *lifecycle) active() bool {
	return l != nil && l.emitter != nil && l.nodeID != ""
}

func (l *lifecycle) emit(u progress.Update) {
	if !l.active() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := api.ValidateTaskTransition(l.status, u.Status); err != nil {
		debug.Log(debug.Dispatch, "dropping progress update", "node", l.nodeID, "error", err)
		return
	}
	l.status = u.Status
	if u.TaskID != "" {
		l.taskID = u.TaskID
	}
	u.NodeID, u.NodeKind, u.TaskKind, u.Vendor = l.nodeID, l.nodeKind, l.kind, l.vendor
	if u.TaskID == "" {
		u.TaskID = l.taskID
	}
	l.emitter.Emit(l.userID, u)
}

func (l *lifecycle) queued() {
	l.emit(progress.Update{Status: api.TaskStatusQueued, Progress: progress.Float(0)})
}

func (l *lifecycle) running(pct float64, msg string) {
	l.emit(progress.Update{Status: api.TaskStatusRunning, Progress: progress.Float(pct), Message: msg})
}

func (l *lifecycle) failed(err error) {
	msg := err.Error()
	if apiErr, ok := api.AsAPIError(err); ok {
		msg = apiErr.Message
	}
	l.emit(progress.Update{Status: api.TaskStatusFailed, Message: msg})
}

// finish announces the dispatcher's result. A running result keeps the
// task open for client-driven polling.
func (l *lifecycle) finish(res *api.TaskResult) {
	u := progress.Update{Status: res.Status, TaskID: res.ID, Raw: res.Raw}
	switch res.Status {
	case api.TaskStatusSucceeded:
		u.Progress = progress.Float(100)
		u.Assets = res.Assets
	case api.TaskStatusFailed:
		u.Message = res.RawString("failureReason")
	}
	l.emit(u)
}

// report is the adapter's OnProgress hook. Adapter statuses are folded into
// running so terminal snapshots come only from finish.
func (l *lifecycle) report(u provider.ProgressUpdate) {
	pu := progress.Update{Status: api.TaskStatusRunning, Message: u.Message, TaskID: u.TaskID, Raw: u.Raw}
	if u.Status == api.TaskStatusQueued {
		l.mu.Lock()
		if l.status == "" || l.status == api.TaskStatusQueued {
			pu.Status = api.TaskStatusQueued
		}
		l.mu.Unlock()
	}
	if u.Progress > 0 {
		pu.Progress = progress.Float(u.Progress)
	}
	l.emit(pu)
}
