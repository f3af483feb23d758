package api

import "fmt"

// ValidateTaskTransition checks whether a task status transition is valid.
// An empty "from" status is the state before the task has been announced.
// Status only moves forward; succeeded and failed are terminal.
// Re-announcing the current non-terminal status is allowed so repeated
// running updates with new progress values pass.
func ValidateTaskTransition(from, to TaskStatus) *APIError {
	valid := map[TaskStatus][]TaskStatus{
		"":                {TaskStatusQueued, TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed},
		TaskStatusQueued:  {TaskStatusQueued, TaskStatusRunning, TaskStatusFailed},
		TaskStatusRunning: {TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed},
	}

	allowed, exists := valid[from]
	if !exists {
		return NewInvalidRequestError("status",
			fmt.Sprintf("invalid transition from %s to %s", from, to))
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
