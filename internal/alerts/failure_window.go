package alerts

import (
	"fmt"
	"sync"
	"time"

	"billing-app/internal/domain/audit"
)

// FailureWindow tracks webhook outcomes over a sliding time window and raises
// HIGH_FAILURE_RATE when the failure ratio crosses the threshold. The alert
// fires once per crossing: it re-arms only after the ratio drops back below
// the threshold, so a sustained outage produces one alert, not one per event.
type FailureWindow struct {
	emitter   *Emitter
	window    time.Duration
	threshold float64
	minEvents int

	mu       sync.Mutex
	events   []outcome
	breached bool
}

type outcome struct {
	at     time.Time
	failed bool
}

func NewFailureWindow(emitter *Emitter, window time.Duration, threshold float64, minEvents int) *FailureWindow {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	if minEvents <= 0 {
		minEvents = 5
	}
	return &FailureWindow{
		emitter:   emitter,
		window:    window,
		threshold: threshold,
		minEvents: minEvents,
	}
}

// Observe records one processing outcome and evaluates the window.
func (w *FailureWindow) Observe(failed bool, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.events = append(w.events, outcome{at: now, failed: failed})
	cutoff := now.Add(-w.window)
	keep := w.events[:0]
	for _, ev := range w.events {
		if ev.at.After(cutoff) {
			keep = append(keep, ev)
		}
	}
	w.events = keep

	total := len(w.events)
	if total < w.minEvents {
		return
	}
	failures := 0
	for _, ev := range w.events {
		if ev.failed {
			failures++
		}
	}
	ratio := float64(failures) / float64(total)

	if ratio >= w.threshold {
		if !w.breached {
			w.breached = true
			w.emitter.Raise(audit.HighFailureRate,
				fmt.Sprintf("webhook failure rate %.0f%% over last %s", ratio*100, w.window),
				map[string]string{
					"failures": fmt.Sprintf("%d", failures),
					"total":    fmt.Sprintf("%d", total),
				})
		}
		return
	}
	w.breached = false
}
