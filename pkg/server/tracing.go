package server

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/simwire/simwire/pkg/circuit"
	"github.com/simwire/simwire/pkg/message"
)

// Default tracer name for inbound dispatch spans.
const defaultTracerName = "simwire/server"

// startDispatchSpan opens the span covering handler execution for one
// inbound message. The tracer comes from the global provider, so spans are
// no-ops until the process configures one.
func (s *Server) startDispatchSpan(ctx context.Context, c *circuit.Circuit, desc *message.Descriptor) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, fmt.Sprintf("simwire.%s", desc.Name),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("simwire.message", desc.Name),
			attribute.String("simwire.message_id", desc.ID.String()),
			attribute.String("simwire.circuit", c.Addr.String()),
			attribute.Bool("simwire.trusted", c.Trusted),
			attribute.String("simwire.agent_id", c.AgentID.String()),
		),
	)
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(defaultTracerName)
}
