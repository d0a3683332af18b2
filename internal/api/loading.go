package api

import "sync"

// LoadingIndicator mirrors the host UI's global loading toast.
type LoadingIndicator interface {
	Show(title string, mask bool)
	Hide()
}

// NopIndicator ignores every call. Used where no UI exists.
type NopIndicator struct{}

func (NopIndicator) Show(string, bool) {}
func (NopIndicator) Hide()             {}

// loadingTracker reference-counts overlapping requests so the indicator is
// shown exactly once when the first request begins and hidden exactly once
// when the last one finishes, regardless of interleaving.
type loadingTracker struct {
	mu        sync.Mutex
	active    int
	indicator LoadingIndicator
}

func newLoadingTracker(indicator LoadingIndicator) *loadingTracker {
	if indicator == nil {
		indicator = NopIndicator{}
	}
	return &loadingTracker{indicator: indicator}
}

func (t *loadingTracker) begin(title string, mask bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active++
	if t.active == 1 {
		t.indicator.Show(title, mask)
	}
}

func (t *loadingTracker) end() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == 0 {
		return
	}
	t.active--
	if t.active == 0 {
		t.indicator.Hide()
	}
}
