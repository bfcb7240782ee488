package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	if first < 20*time.Millisecond {
		t.Errorf("Timer.Duration() = %v, want >= 20ms", first)
	}

	time.Sleep(5 * time.Millisecond)
	if second := timer.Duration(); second <= first {
		t.Errorf("Duration should keep growing: first=%v, second=%v", first, second)
	}
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_script_duration_seconds",
		Help: "Test histogram",
	})

	NewTimer().ObserveDuration(histogram)

	if got := testutil.CollectAndCount(histogram); got != 1 {
		t.Errorf("collected %d metrics, want 1", got)
	}
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "test_pipeline_duration_seconds",
			Help: "Test histogram vec",
		},
		[]string{"mode"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(histogramVec, "install")
	timer.ObserveDurationVec(histogramVec, "update")

	if got := testutil.CollectAndCount(histogramVec); got != 2 {
		t.Errorf("collected %d series, want 2", got)
	}
}
