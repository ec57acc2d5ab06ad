// Package tracing wraps OpenTelemetry for CAPIO-CL's engine and
// commit-monitor operations. It is trimmed from the teacher's
// pkg/tracing.TracingManager: no Jaeger or OTLP exporter is wired here
// (spec.md §9 / SPEC_FULL.md §9) since the engine never stands up a
// collector endpoint on its own — callers that want a real backend
// provide their own TracerProvider via NewManagerWithProvider.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Manager hands out a named Tracer and can be pointed at an external
// TracerProvider (e.g. one built by the embedding daemon). With no
// provider configured it defers to the global otel.Tracer, which is a
// no-op until the process installs a real provider.
type Manager struct {
	tracer trace.Tracer
}

// NewManager returns a Manager using the global otel tracer under the
// given instrumentation name.
func NewManager(name string) *Manager {
	return &Manager{tracer: otel.Tracer(name)}
}

// NewManagerWithProvider returns a Manager whose spans are recorded by
// provider, for callers embedding the engine in a process that already
// runs its own OpenTelemetry SDK setup.
func NewManagerWithProvider(provider *sdktrace.TracerProvider, name string) *Manager {
	return &Manager{tracer: provider.Tracer(name)}
}

// Start begins a span named op, returning a context carrying it and an
// end function the caller defers.
func (m *Manager) Start(ctx context.Context, op string) (context.Context, func()) {
	if m == nil || m.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := m.tracer.Start(ctx, op)
	return ctx, func() { span.End() }
}
