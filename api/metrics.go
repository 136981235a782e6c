package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	moveSpanName    = "board.move_task"
	moveEventName   = "board.move_task.completed"
	moveEventDomain = "board"
)

type moveRequestMetrics struct {
	logger       *log.Logger
	span         trace.Span
	start        time.Time
	authDuration time.Duration
	moveDuration time.Duration
	duplicate    bool
	errorStage   string
}

// newMoveRequestMetrics starts a span for the move request and returns the
// context carrying it. Log must be called exactly once to end the span.
func newMoveRequestMetrics(ctx context.Context, logger *log.Logger) (*moveRequestMetrics, context.Context) {
	m := &moveRequestMetrics{
		logger: logger,
		start:  time.Now(),
	}
	spanCtx, span := otel.Tracer("kanban-api/api").Start(ctx, moveSpanName)
	m.span = span
	return m, spanCtx
}

func (m *moveRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *moveRequestMetrics) ObserveMove(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.moveDuration = duration
}

func (m *moveRequestMetrics) SetDuplicate(duplicate bool) {
	m.duplicate = duplicate
}

func (m *moveRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log emits the request summary to the structured log and onto the span,
// then ends the span.
func (m *moveRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	totalMS := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("event.name", moveEventName),
		attribute.String("event.domain", moveEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
		attribute.String("http.route", "/api/move-task"),
		attribute.Float64("board.move.total_ms", totalMS),
		attribute.Bool("board.move.duplicate", m.duplicate),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.move.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.moveDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.move.move_ms", durationToMillis(m.moveDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("board.move.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(
			attribute.String("http.route", "/api/move-task"),
			attribute.Int("http.status_code", status),
		)
		m.span.AddEvent("observability.event", trace.WithAttributes(attrs...))
		if err != nil || status >= http.StatusInternalServerError {
			desc := severityText
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      moveEventName,
		"event.domain":    moveEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"status":          status,
		"attributes":      attributesToFields(attrs),
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	m.logger.WithFields(fields).Info("observability.event")
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func attributesToFields(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
