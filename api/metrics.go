package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/box129/ToDo-ForPortfolio/api"
	metricsKey = "request.metrics"
)

type requestMetrics struct {
	logger     *log.Logger
	route      string
	start      time.Time
	span       trace.Span
	commands   int
	applied    int
	errorStage string
}

// RequestMetrics records one span and one structured log entry per request.
// Handlers annotate the record through metricsFrom.
func RequestMetrics(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			ctx, span := otel.Tracer(tracerName).Start(c.Request().Context(), c.Request().Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer))
			c.SetRequest(c.Request().WithContext(ctx))

			m := &requestMetrics{logger: logger, route: route, start: time.Now(), span: span}
			c.Set(metricsKey, m)

			err := next(c)
			status := c.Response().Status
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			m.Finish(status, err)
			return err
		}
	}
}

func metricsFrom(c echo.Context) *requestMetrics {
	m, _ := c.Get(metricsKey).(*requestMetrics)
	return m
}

func (m *requestMetrics) SetCommands(n int) {
	if m == nil || n < 0 {
		return
	}
	m.commands = n
}

func (m *requestMetrics) SetApplied(n int) {
	if m == nil || n < 0 {
		return
	}
	m.applied = n
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if m == nil || stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *requestMetrics) Finish(status int, err error) {
	if m == nil {
		return
	}
	total := durationToMillis(time.Since(m.start))

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("request.total_ms", total),
	}
	if m.commands > 0 {
		attrs = append(attrs, attribute.Int("commands.received", m.commands), attribute.Int("commands.applied", m.applied))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("error.stage", m.errorStage))
	}
	if m.span != nil {
		m.span.SetAttributes(attrs...)
		if err != nil {
			m.span.RecordError(err)
		}
		if status >= http.StatusInternalServerError || err != nil {
			m.span.SetStatus(codes.Error, http.StatusText(status))
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"route":    m.route,
		"status":   status,
		"total_ms": total,
	}
	if m.commands > 0 {
		fields["commands"] = m.commands
		fields["applied"] = m.applied
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Log(levelForStatus(status, err), "request.metrics")
}

func levelForStatus(status int, err error) log.Level {
	switch {
	case status >= http.StatusInternalServerError || (err != nil && status == 0):
		return log.ErrorLevel
	case status >= http.StatusBadRequest:
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
