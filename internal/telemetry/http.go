package telemetry

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const httpScopeName = "github.com/ticketdrop/ticketdrop/http"

// instrumentedTransport wraps an http.RoundTripper with a client span and
// td.http.client.* metrics per upstream request.
type instrumentedTransport struct {
	inner    http.RoundTripper
	upstream string
	tracer   trace.Tracer
	reqs     metric.Int64Counter
	dur      metric.Float64Histogram
	errs     metric.Int64Counter
}

// WrapTransport decorates rt with OTel instrumentation labelled with the
// upstream name (e.g. "linear", "anthropic"). When telemetry is disabled rt is
// returned unchanged. A nil rt means http.DefaultTransport.
func WrapTransport(upstream string, rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if !Enabled() {
		return rt
	}
	m := Meter(httpScopeName)
	reqs, _ := m.Int64Counter("td.http.client.requests",
		metric.WithDescription("Upstream HTTP requests sent"),
	)
	dur, _ := m.Float64Histogram("td.http.client.duration",
		metric.WithDescription("Upstream HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("td.http.client.errors",
		metric.WithDescription("Upstream HTTP requests that failed or returned >= 400"),
	)
	return &instrumentedTransport{
		inner:    rt,
		upstream: upstream,
		tracer:   Tracer(httpScopeName),
		reqs:     reqs,
		dur:      dur,
		errs:     errs,
	}
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attrs := []attribute.KeyValue{
		attribute.String("td.upstream", t.upstream),
		attribute.String("http.request.method", req.Method),
		attribute.String("server.address", req.URL.Host),
	}
	ctx, span := t.tracer.Start(req.Context(), "http.client."+t.upstream,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()
	t.reqs.Add(ctx, 1, metric.WithAttributes(attrs...))

	start := time.Now()
	resp, err := t.inner.RoundTrip(req.WithContext(ctx))
	t.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		t.fail(ctx, span, err.Error(), attrs)
		return resp, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		t.fail(ctx, span, resp.Status, attrs)
	}
	return resp, nil
}

func (t *instrumentedTransport) fail(ctx context.Context, span trace.Span, msg string, attrs []attribute.KeyValue) {
	span.SetStatus(codes.Error, msg)
	t.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE handlers working behind the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// InstrumentHandler wraps h with a server span per request. When telemetry is
// disabled h is returned unchanged.
func InstrumentHandler(h http.Handler) http.Handler {
	if !Enabled() {
		return h
	}
	tracer := Tracer(httpScopeName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}
