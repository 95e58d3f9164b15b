package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/newswire/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	SessionStarted()
	RecordMessage("server", "in", 5)
	RecordFetch("headlines", "keyword", "ok", 24*time.Millisecond)
	RecordHTTPRequest("newsd", "GET", "/health", 200, 12*time.Millisecond)
	SessionEnded("bye")
	SessionRejected()
}

func TestRecordMessageCounts(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(sessionMessages.WithLabelValues("client", "out"))
	RecordMessage("client", "out", 3)
	RecordMessage("client", "out", 0)
	after := testutil.ToFloat64(sessionMessages.WithLabelValues("client", "out"))
	if after-before != 2 {
		t.Fatalf("expected 2 messages recorded, got %v", after-before)
	}
}

func TestHandlerExposesNewswireMetrics(t *testing.T) {
	testlog.Start(t)
	RecordFetch("sources", "all", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "newswire_fetch_total") {
		t.Fatalf("metrics output missing newswire_fetch_total")
	}
}

func TestMiddlewareLogsAndCounts(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.TraceLevel)
	r := gin.New()
	r.Use(RequestLogger(logger, "newsd-test"), RequestMetricsMiddleware("newsd-test"))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	routed := httpRequests.WithLabelValues("newsd-test", "GET", "/sessions/:id", "204")
	unmatched := httpRequests.WithLabelValues("newsd-test", "GET", UnmatchedRoute, "404")
	beforeRouted := testutil.ToFloat64(routed)
	beforeUnmatched := testutil.ToFloat64(unmatched)

	for _, path := range []string{"/sessions/abc", "/sessions/def", "/nope", "/also/nope"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(routed) - beforeRouted; got != 2 {
		t.Fatalf("expected two routed requests, got %v", got)
	}
	if got := testutil.ToFloat64(unmatched) - beforeUnmatched; got != 2 {
		t.Fatalf("expected unknown paths to share one label, got %v", got)
	}
	out := buf.String()
	for _, want := range []string{
		`"service":"newsd-test"`,
		`"route":"/sessions/:id"`,
		`"path":"/sessions/abc"`,
		`"route":"unmatched"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("request log missing %s: %q", want, out)
		}
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.TraceLevel)
	r := gin.New()
	r.Use(RequestLogger(logger, "newsd-test"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/sessions", func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) })

	cases := []struct {
		path   string
		level  string
		denied bool
	}{
		{"/health", "debug", false},
		{"/sessions", "warn", true},
	}
	for _, tc := range cases {
		buf.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
		out := buf.String()
		if !strings.Contains(out, `"level":"`+tc.level+`"`) {
			t.Fatalf("%s: expected level %s: %q", tc.path, tc.level, out)
		}
		if got := strings.Contains(out, `"denied":true`); got != tc.denied {
			t.Fatalf("%s: denied=%v want %v: %q", tc.path, got, tc.denied, out)
		}
	}
}
