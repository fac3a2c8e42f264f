package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/feedwall/internal/errs"
)

func TestTransport_RequestIDAndLogging(t *testing.T) {
	t.Parallel()

	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(requestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.InfoLevel)
	c := New(srv.URL, nil, WithLogger(zap.New(core)))
	_, err := Delete[struct{}](context.Background(), c, "/api/x")
	require.NoError(t, err)

	_, err = uuid.FromString(seen)
	require.NoError(t, err, "request id must be a uuid: %q", seen)

	entries := logs.FilterMessage("http").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "DELETE", fields["method"])
	require.Equal(t, "/api/x", fields["path"])
	require.EqualValues(t, http.StatusNoContent, fields["code"])
	require.Equal(t, seen, fields["request_id"])
}

func TestTransport_Metrics(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	a := New(srv.URL, nil, WithRegisterer(reg))
	b := New(srv.URL, nil, WithRegisterer(reg))

	for _, c := range []*Client{a, b, a} {
		_, err := GetPublic[struct{}](context.Background(), c, "/", nil)
		require.NoError(t, err)
	}
	require.Equal(t, 3.0, testutil.ToFloat64(a.metrics.requests.WithLabelValues("GET", "204")))
	require.Same(t, a.metrics.requests, b.metrics.requests)
}

func TestTransport_RecoversPanic(t *testing.T) {
	t.Parallel()

	boom := roundTripperFunc(func(*http.Request) (*http.Response, error) { panic("oh no") })
	c := New("http://example.invalid", nil, WithHTTPClient(&http.Client{Transport: boom}))

	_, err := GetPublic[struct{}](context.Background(), c, "/", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "oh no")
}

func TestTransport_Spans(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	c := New(srv.URL, nil, WithTracerProvider(tp))

	_, err := GetPublic[struct{}](context.Background(), c, "/api/feed", nil)
	require.NoError(t, err)
	_, err = Post[struct{}](context.Background(), c, "/down", nil)
	require.ErrorIs(t, err, errs.ErrServer)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	require.Equal(t, "HTTP GET", ok.Name())
	require.Equal(t, trace.SpanKindClient, ok.SpanKind())
	attrs := attrMap(ok.Attributes())
	require.Equal(t, attribute.StringValue("/api/feed"), attrs["url.path"])
	require.Equal(t, attribute.IntValue(http.StatusNoContent), attrs["http.response.status_code"])
	require.NotEqual(t, codes.Error, ok.Status().Code)

	failed := spans[1]
	require.Equal(t, "HTTP POST", failed.Name())
	require.Equal(t, attribute.IntValue(http.StatusServiceUnavailable), attrMap(failed.Attributes())["http.response.status_code"])
	require.Equal(t, codes.Error, failed.Status().Code)
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}
