package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Handler runs the tasks stored under Name.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// HandlerFunc handles a decoded payload.
type HandlerFunc[T any] func(ctx context.Context, payload T) error

// NewTaskHandler routes tasks named after T to fn. Enqueuer and Scheduler
// both name a task after its payload type, so one handler serves on-demand
// and periodic runs. A payload that does not decode into T fails permanently.
func NewTaskHandler[T any](fn HandlerFunc[T]) Handler {
	var zero T
	return typedHandler[T]{name: TaskName(zero), fn: fn}
}

// TaskName is the package-qualified type name of v, e.g. "jobs.ExportData".
func TaskName(v any) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", v), "*")
}

type typedHandler[T any] struct {
	name string
	fn   HandlerFunc[T]
}

func (h typedHandler[T]) Name() string { return h.name }

func (h typedHandler[T]) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return Permanent(errors.Join(ErrPayloadDecode, err))
		}
	}
	return h.fn(ctx, payload)
}
