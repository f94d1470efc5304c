// Package task implements the task registry and lifecycle manager for
// asynchronous conversion work. The registry owns all task records: it
// creates them, launches each task's work function in its own goroutine,
// and is the only writer of status, progress, and error fields. Clients
// observe completion by polling, never by blocking on the registry.
package task
