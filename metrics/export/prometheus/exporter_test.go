package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"

	authcore "github.com/zvincent07/authcore"
	"github.com/zvincent07/authcore/metrics/export/internaldefs"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                      { return f.dropped }

func sourceWithCounts() *fakeSource {
	return &fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess: 42,
				authcore.MetricIPBanned:     3,
			},
			Histograms: map[authcore.MetricID][8]uint64{
				authcore.HistogramLoginLatency: {2, 1, 0, 0, 0, 0, 0, 1},
			},
		},
		dropped: 7,
	}
}

func TestRenderCounters(t *testing.T) {
	out := NewPrometheusExporterFromSource(sourceWithCounts()).Render()

	for _, want := range []string{
		"# TYPE authcore_login_success_total counter",
		"authcore_login_success_total 42",
		"authcore_ip_banned_total 3",
		"authcore_login_failure_total 0",
		"authcore_audit_dropped_total 7",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderHistogramCumulative(t *testing.T) {
	out := NewPrometheusExporterFromSource(sourceWithCounts()).Render()

	for _, want := range []string{
		"# TYPE authcore_login_latency_seconds histogram",
		`authcore_login_latency_seconds_bucket{le="0.005"} 2`,
		`authcore_login_latency_seconds_bucket{le="0.01"} 3`,
		`authcore_login_latency_seconds_bucket{le="+Inf"} 4`,
		"authcore_login_latency_seconds_count 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderCoversEveryDef(t *testing.T) {
	out := NewPrometheusExporterFromSource(sourceWithCounts()).Render()
	for _, def := range internaldefs.CounterDefs {
		if !strings.Contains(out, def.Name+" ") {
			t.Errorf("counter %q not rendered", def.Name)
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		if !strings.Contains(out, def.Name+"_count") {
			t.Errorf("histogram %q not rendered", def.Name)
		}
	}
}

func TestRenderEmptySource(t *testing.T) {
	exp := NewPrometheusExporterFromSource(&fakeSource{})
	if out := exp.Render(); out != "" {
		t.Fatalf("empty source rendered %q", out)
	}
	var nilExp *PrometheusExporter
	if out := nilExp.Render(); out != "" {
		t.Fatalf("nil exporter rendered %q", out)
	}
}

func TestHandlerContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(sourceWithCounts())
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "authcore_login_success_total 42") {
		t.Fatal("body missing counter")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := internaldefs.CumulativeBuckets([8]uint64{1, 0, 2, 0, 0, 0, 0, 3})
	want := [8]uint64{1, 1, 3, 3, 3, 3, 3, 6}
	if got != want {
		t.Fatalf("CumulativeBuckets = %v, want %v", got, want)
	}
}
