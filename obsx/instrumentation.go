package obsx

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const instrumentationName = "go.eggybyte.com/busnode/obsx"

// Message is the traced view of a bus message.
type Message struct {
	ID          string
	Type        string
	Destination string
	Headers     map[string]string
	Body        []byte
}

// MessagingInstrumentation starts spans around message send and receive and
// carries the trace context in message headers.
type MessagingInstrumentation struct {
	tracer      trace.Tracer
	propagator  propagation.TextMapPropagator
	system      string
	captureBody bool
}

// NewMessagingInstrumentation creates the messaging hooks of cfg.
func NewMessagingInstrumentation(tp trace.TracerProvider, propagator propagation.TextMapPropagator, cfg TracingConfig) *MessagingInstrumentation {
	return &MessagingInstrumentation{
		tracer:      tp.Tracer(instrumentationName),
		propagator:  propagator,
		system:      cfg.ServiceName,
		captureBody: cfg.Captures(SubsystemMessaging, CaptureMessageBody),
	}
}

// CapturesBody reports whether message bodies are recorded on spans.
func (m *MessagingInstrumentation) CapturesBody() bool { return m.captureBody }

// StartSend starts a producer span and writes its context into msg.Headers.
func (m *MessagingInstrumentation) StartSend(ctx context.Context, msg *Message) (context.Context, trace.Span) {
	ctx, span := m.tracer.Start(ctx, msg.Destination+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(m.attributes("publish", *msg)...),
	)
	if msg.Headers == nil {
		msg.Headers = make(map[string]string)
	}
	m.propagator.Inject(ctx, propagation.MapCarrier(msg.Headers))
	return ctx, span
}

// StartReceive starts a consumer span continuing the trace found in the
// message headers.
func (m *MessagingInstrumentation) StartReceive(ctx context.Context, msg Message) (context.Context, trace.Span) {
	if msg.Headers != nil {
		ctx = m.propagator.Extract(ctx, propagation.MapCarrier(msg.Headers))
	}
	return m.tracer.Start(ctx, msg.Destination+" receive",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(m.attributes("receive", msg)...),
	)
}

func (m *MessagingInstrumentation) attributes(operation string, msg Message) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("messaging.system", m.system),
		attribute.String("messaging.operation", operation),
		attribute.String("messaging.destination.name", msg.Destination),
		attribute.Int("messaging.message.body.size", len(msg.Body)),
	}
	if msg.ID != "" {
		attrs = append(attrs, attribute.String("messaging.message.id", msg.ID))
	}
	if msg.Type != "" {
		attrs = append(attrs, attribute.String("messaging.message.type", msg.Type))
	}
	if m.captureBody && len(msg.Body) > 0 {
		attrs = append(attrs, attribute.String("messaging.message.body", string(msg.Body)))
	}
	return attrs
}

// SQLInstrumentation traces statements issued through GORM.
type SQLInstrumentation struct {
	tracer      trace.Tracer
	captureText bool
}

// NewSQLInstrumentation creates the SQL hooks of cfg.
func NewSQLInstrumentation(tp trace.TracerProvider, cfg TracingConfig) *SQLInstrumentation {
	return &SQLInstrumentation{
		tracer:      tp.Tracer(instrumentationName),
		captureText: cfg.Captures(SubsystemSQL, CaptureCommandText),
	}
}

// CapturesCommandText reports whether statement text is recorded on spans.
func (s *SQLInstrumentation) CapturesCommandText() bool { return s.captureText }

// Plugin returns the GORM plugin to pass to (*gorm.DB).Use.
func (s *SQLInstrumentation) Plugin() gorm.Plugin { return gormTracing{s} }

const spanKey = "busnode:span"

type gormTracing struct{ s *SQLInstrumentation }

func (gormTracing) Name() string { return "busnode:tracing" }

func (g gormTracing) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("busnode:before_create", g.before("create")) },
		func() error { return cb.Create().After("gorm:create").Register("busnode:after_create", g.after) },
		func() error { return cb.Query().Before("gorm:query").Register("busnode:before_query", g.before("query")) },
		func() error { return cb.Query().After("gorm:query").Register("busnode:after_query", g.after) },
		func() error { return cb.Update().Before("gorm:update").Register("busnode:before_update", g.before("update")) },
		func() error { return cb.Update().After("gorm:update").Register("busnode:after_update", g.after) },
		func() error { return cb.Delete().Before("gorm:delete").Register("busnode:before_delete", g.before("delete")) },
		func() error { return cb.Delete().After("gorm:delete").Register("busnode:after_delete", g.after) },
		func() error { return cb.Row().Before("gorm:row").Register("busnode:before_row", g.before("row")) },
		func() error { return cb.Row().After("gorm:row").Register("busnode:after_row", g.after) },
		func() error { return cb.Raw().Before("gorm:raw").Register("busnode:before_raw", g.before("raw")) },
		func() error { return cb.Raw().After("gorm:raw").Register("busnode:after_raw", g.after) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

func (g gormTracing) before(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, span := g.s.tracer.Start(ctx, "gorm."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", db.Dialector.Name()),
				attribute.String("db.operation", op),
			),
		)
		db.Statement.Context = ctx
		db.InstanceSet(spanKey, span)
	}
}

func (g gormTracing) after(db *gorm.DB) {
	v, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if g.s.captureText {
		span.SetAttributes(attribute.String("db.statement", db.Statement.SQL.String()))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Error != nil && !stderrors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
}
