package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// Registry is the fixed list of adapters the engine can dispatch to.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds a registry. It fails on duplicate vendor names and on
// adapters whose declared capabilities are not backed by an implementation.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	seen := make(map[string]bool, len(adapters))
	for _, a := range adapters {
		name := a.Name()
		if seen[name] {
			return nil, fmt.Errorf("duplicate adapter %q", name)
		}
		seen[name] = true
		for _, c := range a.Capabilities().Supports {
			if !implements(a, c) {
				return nil, fmt.Errorf("adapter %q declares %s without implementing it", name, c)
			}
		}
	}
	return &Registry{adapters: adapters}, nil
}

// Lookup returns the adapter for vendor. Unknown vendors fail with
// UnsupportedOperation.
func (r *Registry) Lookup(vendor string) (Adapter, error) {
	v := strings.ToLower(strings.TrimSpace(vendor))
	for _, a := range r.adapters {
		if a.Name() == v {
			return a, nil
		}
	}
	return nil, api.NewUnsupportedOperationError(vendor, "")
}

// Vendors lists registered vendor names in registration order.
func (r *Registry) Vendors() []string {
	out := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		out[i] = a.Name()
	}
	return out
}

// RequiresKey reports whether vendor needs an API key. Unknown vendors do.
func (r *Registry) RequiresKey(vendor string) bool {
	a, err := r.Lookup(vendor)
	if err != nil {
		return true
	}
	return a.Capabilities().RequiresKey
}

// Check fails with UnsupportedOperation when a cannot serve kind.
func Check(a Adapter, kind api.TaskKind) error {
	c, ok := CapabilityFor(kind)
	if !ok || !a.Capabilities().Has(c) || !implements(a, c) {
		return api.NewUnsupportedOperationError(a.Name(), kind)
	}
	return nil
}

// Run invokes the adapter operation matching req.Kind.
func Run(ctx context.Context, a Adapter, pc *Context, req *api.TaskRequest) (*api.TaskResult, error) {
	if err := Check(a, req.Kind); err != nil {
		return nil, err
	}
	c, _ := CapabilityFor(req.Kind)
	switch c {
	case CapRunChat:
		return a.(ChatRunner).RunChat(ctx, pc, req)
	case CapTextToImage:
		return a.(ImageGenerator).TextToImage(ctx, pc, req)
	case CapTextToVideo:
		return a.(VideoGenerator).TextToVideo(ctx, pc, req)
	case CapImageEdit:
		return a.(ImageEditor).ImageEdit(ctx, pc, req)
	case CapImageToPrompt:
		return a.(ImageDescriber).ImageToPrompt(ctx, pc, req)
	}
	return nil, api.NewUnsupportedOperationError(a.Name(), req.Kind)
}

func implements(a Adapter, c Capability) bool {
	var ok bool
	switch c {
	case CapRunChat:
		_, ok = a.(ChatRunner)
	case CapTextToImage:
		_, ok = a.(ImageGenerator)
	case CapTextToVideo:
		_, ok = a.(VideoGenerator)
	case CapImageEdit:
		_, ok = a.(ImageEditor)
	case CapImageToPrompt:
		_, ok = a.(ImageDescriber)
	}
	return ok
}
