package hook

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Registration panics on duplicates, so every test shares one Metrics.
var testMetrics = NewMetrics()

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("writing metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetricsCountByLabel(t *testing.T) {
	m := testMetrics

	m.WebhookCounter.WithLabelValues("push").Inc()
	m.WebhookCounter.WithLabelValues("push").Inc()
	m.WebhookCounter.WithLabelValues("pull_request").Inc()
	m.ViolationsFound.WithLabelValues("title-length-check").Inc()

	if got := counterValue(t, m.WebhookCounter.WithLabelValues("push")); got != 2 {
		t.Errorf("webhook_counter{push} = %v, want 2", got)
	}
	if got := counterValue(t, m.WebhookCounter.WithLabelValues("pull_request")); got != 1 {
		t.Errorf("webhook_counter{pull_request} = %v, want 1", got)
	}
	if got := counterValue(t, m.ViolationsFound.WithLabelValues("title-length-check")); got != 1 {
		t.Errorf("violations_found{title-length-check} = %v, want 1", got)
	}
}

func TestMetricsAreExposedInTextFormat(t *testing.T) {
	// A family with no samples is omitted from Gather; make sure each
	// collector has at least one child before asserting on the output.
	testMetrics.WebhookCounter.WithLabelValues("push").Inc()
	testMetrics.DispatchErrors.WithLabelValues("push").Inc()
	testMetrics.ViolationsFound.WithLabelValues("body-check").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, f := range families {
		if err := enc.Encode(f); err != nil {
			t.Fatalf("encoding %s: %v", f.GetName(), err)
		}
	}

	out := buf.String()
	for _, want := range []string{"gitbot_webhook_counter", "gitbot_dispatch_errors", "gitbot_violations_found"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in the text exposition, got:\n%s", want, out)
		}
	}
}
