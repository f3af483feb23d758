// Package progress is the per-user progress bus. Snapshots are pushed to
// every live subscription of the user; store-only vendors are kept in a
// bounded pending list instead and read back on demand.
//
// A Bus is an ordinary value: construct one per server (or per test) and
// inject it. Subscriptions end with Close or when their context is done.
package progress

import (
	"context"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/observability"
)

// Config tunes a Bus.
type Config struct {
	// BufferSize is the per-subscription channel capacity. Snapshots for a
	// full subscription are dropped.
	BufferSize int

	// StoreOnlyVendors are retained as pending instead of pushed live.
	StoreOnlyVendors []string

	// PendingLimit bounds the pending list per user; oldest entries go first.
	PendingLimit int

	// PendingTTL expires pending entries.
	PendingTTL time.Duration
}

// DefaultConfig returns the defaults used when fields are zero.
func DefaultConfig() Config {
	return Config{
		BufferSize:   32,
		PendingLimit: 50,
		PendingTTL:   10 * time.Minute,
	}
}

// Update is one lifecycle event. Progress is a 0-1 fraction or a 0-100
// percentage; nil means no progress value.
type Update struct {
	NodeID   string
	NodeKind string
	TaskKind api.TaskKind
	Vendor   string
	Status   api.TaskStatus
	Progress *float64
	Message  string
	TaskID   string
	Assets   []api.TaskAsset
	Raw      map[string]any
}

// Bus fans snapshots out to subscribers, keyed by user.
type Bus struct {
	cfg       Config
	storeOnly map[string]bool
	now       func() time.Time

	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	pending map[string][]api.ProgressSnapshot
}

// NewBus creates a Bus.
func NewBus(cfg Config) *Bus {
	d := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = d.BufferSize
	}
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = d.PendingLimit
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = d.PendingTTL
	}
	so := make(map[string]bool, len(cfg.StoreOnlyVendors))
	for _, v := range cfg.StoreOnlyVendors {
		so[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return &Bus{
		cfg:       cfg,
		storeOnly: so,
		now:       time.Now,
		subs:      make(map[string]map[*Subscription]struct{}),
		pending:   make(map[string][]api.ProgressSnapshot),
	}
}

// Subscription is one live stream of a user's snapshots.
type Subscription struct {
	bus    *Bus
	userID string
	ch     chan api.ProgressSnapshot
	once   sync.Once
}

// C delivers snapshots. It is closed when the subscription ends.
func (s *Subscription) C() <-chan api.ProgressSnapshot { return s.ch }

// Close deregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.bus
		b.mu.Lock()
		if set, ok := b.subs[s.userID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.userID)
			}
		}
		close(s.ch)
		b.mu.Unlock()
		observability.ProgressSubscribers.Dec()
		debug.Log(debug.Progress, "unsubscribed", "user", s.userID)
	})
}

// Subscribe registers a subscription for userID that lives until Close or
// until ctx is done, whichever comes first.
func (b *Bus) Subscribe(ctx context.Context, userID string) *Subscription {
	s := &Subscription{
		bus:    b,
		userID: userID,
		ch:     make(chan api.ProgressSnapshot, b.cfg.BufferSize),
	}
	b.mu.Lock()
	set, ok := b.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[userID] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()
	observability.ProgressSubscribers.Inc()
	debug.Log(debug.Progress, "subscribed", "user", userID)

	context.AfterFunc(ctx, s.Close)
	return s
}

// Subscribers returns the number of live subscriptions for userID.
func (b *Bus) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// IsStoreOnly reports whether vendor's snapshots are retained, not pushed.
func (b *Bus) IsStoreOnly(vendor string) bool {
	return b.storeOnly[strings.ToLower(vendor)]
}

// Emit normalizes u into a snapshot and delivers it. Delivery never blocks:
// a subscription whose buffer is full misses the snapshot. The delivered
// snapshot is returned.
func (b *Bus) Emit(userID string, u Update) api.ProgressSnapshot {
	snap := api.ProgressSnapshot{
		NodeID:    u.NodeID,
		NodeKind:  u.NodeKind,
		TaskKind:  u.TaskKind,
		Vendor:    u.Vendor,
		Status:    u.Status,
		Message:   u.Message,
		TaskID:    u.TaskID,
		Assets:    u.Assets,
		Raw:       u.Raw,
		Timestamp: b.now().UnixMilli(),
	}
	if u.Progress != nil {
		p := Clamp(*u.Progress)
		snap.Progress = &p
	}
	if userID == "" {
		return snap
	}

	if b.IsStoreOnly(u.Vendor) {
		b.store(userID, snap)
		return snap
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[userID] {
		select {
		case s.ch <- snap:
		default:
			observability.ProgressDropped.Inc()
			debug.Log(debug.Progress, "dropped snapshot for slow subscriber", "user", userID, "node", snap.NodeID)
		}
	}
	return snap
}

// Pending returns the retained snapshots of userID, oldest first, optionally
// filtered by vendor.
func (b *Bus) Pending(userID, vendor string) []api.ProgressSnapshot {
	vendor = strings.ToLower(strings.TrimSpace(vendor))
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.prune(userID)
	out := make([]api.ProgressSnapshot, 0, len(list))
	for _, s := range list {
		if vendor == "" || strings.EqualFold(s.Vendor, vendor) {
			out = append(out, s)
		}
	}
	return out
}

// store replaces the entry for the same vendor and node (or task), then
// appends, keeping at most PendingLimit entries.
func (b *Bus) store(userID string, snap api.ProgressSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.prune(userID)
	list = slices.DeleteFunc(list, func(s api.ProgressSnapshot) bool {
		return s.Vendor == snap.Vendor && sameTask(s, snap)
	})
	list = append(list, snap)
	if over := len(list) - b.cfg.PendingLimit; over > 0 {
		list = list[over:]
	}
	b.pending[userID] = list
}

// prune drops expired entries. Callers hold mu.
func (b *Bus) prune(userID string) []api.ProgressSnapshot {
	cutoff := b.now().Add(-b.cfg.PendingTTL).UnixMilli()
	list := slices.DeleteFunc(b.pending[userID], func(s api.ProgressSnapshot) bool {
		return s.Timestamp < cutoff
	})
	if len(list) == 0 {
		delete(b.pending, userID)
		return nil
	}
	b.pending[userID] = list
	return list
}

func sameTask(a, b api.ProgressSnapshot) bool {
	if a.NodeID != "" || b.NodeID != "" {
		return a.NodeID == b.NodeID
	}
	return a.TaskID == b.TaskID
}

// Clamp converts a progress value into an integer percentage in [0,100].
// Values up to 1 are fractions: 0.42 becomes 42, 142 becomes 100.
func Clamp(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	if p <= 1 {
		p *= 100
	}
	return int(math.Round(math.Max(0, math.Min(100, p))))
}

// Float is a convenience for building Update.Progress.
func Float(p float64) *float64 { return &p }
