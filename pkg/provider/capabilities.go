package provider

import (
	"slices"
	"sort"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// Capability is one adapter operation.
type Capability string

const (
	CapRunChat       Capability = "runChat"
	CapTextToImage   Capability = "textToImage"
	CapTextToVideo   Capability = "textToVideo"
	CapImageEdit     Capability = "imageEdit"
	CapImageToPrompt Capability = "imageToPrompt"
)

// Capabilities describes what an adapter supports.
type Capabilities struct {
	// Supports lists the operations the adapter implements.
	Supports []Capability

	// RequiresKey is false for vendors that run without an API key.
	RequiresKey bool

	// AsyncResults is true when creation returns a job id to be fetched later.
	AsyncResults bool
}

// Has reports whether c includes capability.
func (c Capabilities) Has(capability Capability) bool {
	return slices.Contains(c.Supports, capability)
}

// Names returns the supported capabilities sorted for display.
func (c Capabilities) Names() []string {
	out := make([]string, 0, len(c.Supports))
	for _, s := range c.Supports {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

var kindCapability = map[api.TaskKind]Capability{
	api.TaskKindChat:          CapRunChat,
	api.TaskKindPromptRefine:  CapRunChat,
	api.TaskKindTextToImage:   CapTextToImage,
	api.TaskKindTextToVideo:   CapTextToVideo,
	api.TaskKindImageToVideo:  CapTextToVideo,
	api.TaskKindImageEdit:     CapImageEdit,
	api.TaskKindImageToPrompt: CapImageToPrompt,
}

// CapabilityFor returns the operation serving kind.
func CapabilityFor(kind api.TaskKind) (Capability, bool) {
	c, ok := kindCapability[kind]
	return c, ok
}
