// Package engine implements the task dispatcher. The Engine implements
// transport.TaskExecutor: it resolves the adapter and credentials for a
// task, invokes the adapter operation matching the task kind, rehosts the
// returned assets and reports the task lifecycle to the progress bus.
// Optional collaborators (progress bus, rehoster) use nil-safe composition.
package engine
