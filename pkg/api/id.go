package api

import (
	"strings"

	"github.com/google/uuid"
)

const taskIDPrefix = "task_"

// NewTaskID returns an engine-assigned task id ("task_" + random UUID without dashes).
func NewTaskID() string {
	return taskIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsEngineTaskID reports whether id was produced by NewTaskID rather than
// handed back by a vendor.
func IsEngineTaskID(id string) bool {
	rest, ok := strings.CutPrefix(id, taskIDPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
