package api

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-Id"
	tracerName      = "github.com/and161185/feedwall/internal/api"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// chain wraps base with recover, request id, tracing, metrics and logging,
// outermost first.
func chain(base http.RoundTripper, log *zap.Logger, m *metrics, tracer trace.Tracer) http.RoundTripper {
	rt := logging(log, base)
	rt = instrumented(m, rt)
	rt = tracing(tracer, rt)
	rt = requestID(rt)
	return recovering(log, rt)
}

func logging(log *zap.Logger, next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)

		// никаких пейлоадов, только метаданные
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("dur", time.Since(start)),
			zap.String("request_id", r.Header.Get(requestIDHeader)),
		}
		if err != nil {
			log.Warn("http", append(fields, zap.Error(err))...)
			return resp, err
		}
		log.Info("http", append(fields, zap.Int("code", resp.StatusCode))...)
		return resp, nil
	})
}

func recovering(log *zap.Logger, next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (resp *http.Response, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic",
					zap.Any("reason", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				resp, err = nil, fmt.Errorf("transport panic: %v", rec)
			}
		}()
		return next.RoundTrip(r)
	})
}

func requestID(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get(requestIDHeader) != "" {
			return next.RoundTrip(r)
		}
		id, err := uuid.NewV4()
		if err != nil {
			return next.RoundTrip(r)
		}
		r = r.Clone(r.Context())
		r.Header.Set(requestIDHeader, id.String())
		return next.RoundTrip(r)
	})
}

func tracing(tracer trace.Tracer, next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		ctx, span := tracer.Start(r.Context(), "HTTP "+r.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		resp, err := next.RoundTrip(r.WithContext(ctx))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return resp, err
		}
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		if resp.StatusCode >= 500 {
			span.SetStatus(codes.Error, resp.Status)
		}
		return resp, nil
	})
}

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedwall",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend requests by method and status code.",
		}, []string{"method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "feedwall",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	m.requests = register(reg, m.requests)
	m.latency = register(reg, m.latency)
	return m
}

// register returns the collector already registered under the same
// descriptor, so several clients can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func instrumented(m *metrics, next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)
		m.latency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		code := "error"
		if err == nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		m.requests.WithLabelValues(r.Method, code).Inc()
		return resp, err
	})
}
