package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	job := "booking-reconcile"
	finished := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	m.ObserveRun(job, nil, 250*time.Millisecond, finished)
	m.ObserveRun(job, errors.New("backend down"), time.Second, finished.Add(time.Minute))
	m.IncSkipped(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, outcome := range []string{OutcomeSuccess, OutcomeFailure, OutcomeSkipped} {
		if got := runCount(mfs, job, outcome); got != 1 {
			t.Fatalf("expected one %s run, got %f", outcome, got)
		}
	}
	if got, err := fetchHistogramSum(mfs, "watchfi_job_duration_seconds", "job", job); err != nil || got != 1.25 {
		t.Fatalf("expected duration sum 1.25, got %f err=%v", got, err)
	}
	gauge := findMetricFamily(mfs, "watchfi_job_last_success_timestamp_seconds")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != float64(finished.Unix()) {
		t.Fatalf("last success should track the successful run only")
	}
}

func runCount(mfs []*dto.MetricFamily, job, outcome string) float64 {
	mf := findMetricFamily(mfs, "watchfi_job_runs_total")
	if mf == nil {
		return 0
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", job) && matchesLabel(metric.GetLabel(), "outcome", outcome) {
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestPaymentMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentMetrics(reg)
	m.ObserveSubmission("USDC", "succeeded", 3*time.Second)
	m.ObserveSubmission("USDC", "failed", time.Second)
	m.ObserveSubmission("USDC", "failed", time.Second)
	m.IncStageFailure("confirm")
	m.IncPriceFallback()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := submissionCount(mfs, "USDC", "failed"); got != 2 {
		t.Fatalf("expected 2 failed submissions, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "watchfi_payment_stage_failures_total", "stage", "confirm"); err != nil || got != 1 {
		t.Fatalf("expected confirm failure=1, got %f err=%v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "watchfi_payment_submission_duration_seconds", "token", "USDC"); err != nil || got != 5 {
		t.Fatalf("expected duration sum 5, got %f err=%v", got, err)
	}
	fallback := findMetricFamily(mfs, "watchfi_oracle_fallback_total")
	if fallback == nil || fallback.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one oracle fallback")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *PaymentMetrics
	m.ObserveSubmission("SOL", "succeeded", time.Second)
	m.IncStageFailure("build")
	m.IncPriceFallback()
	NewPaymentMetrics(nil).IncPriceFallback()
	NewJobMetrics(nil).IncSkipped("job")
	NewJobMetrics(nil).ObserveRun("job", nil, time.Second, time.Now())
}

func submissionCount(mfs []*dto.MetricFamily, token, outcome string) float64 {
	mf := findMetricFamily(mfs, "watchfi_payment_submissions_total")
	if mf == nil {
		return 0
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "token", token) && matchesLabel(metric.GetLabel(), "outcome", outcome) {
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
