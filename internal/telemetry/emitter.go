package telemetry

import "context"

// EventEmitter emits audit events (e.g. to OTel Logs or Kafka). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// MultiEmitter fans one event out to several emitters. Emit returns the last
// error but always attempts every emitter.
type MultiEmitter []EventEmitter

// Emit sends the event to each wrapped emitter in order.
func (m MultiEmitter) Emit(ctx context.Context, event *Event) error {
	var lastErr error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
