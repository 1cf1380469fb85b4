package update

// progressTracker filters raw download percentages before they reach the
// observer: out-of-range and decreasing values are dropped, and 100 clears
// the indicator.
type progressTracker struct {
	observer ProgressObserver
	last     int
	started  bool
	cleared  bool
}

func newProgressTracker(observer ProgressObserver) *progressTracker {
	return &progressTracker{observer: observer, last: -1}
}

func (p *progressTracker) Report(pct int) {
	if p.observer == nil || p.cleared {
		return
	}
	if pct < 0 || pct > 100 {
		return
	}
	if p.started && pct <= p.last {
		return
	}

	p.started = true
	p.last = pct
	p.observer.Progress(pct)

	if pct == 100 {
		p.Clear()
	}
}

// Clear removes the indicator once; used at 100% and when a download fails.
func (p *progressTracker) Clear() {
	if p.observer == nil || p.cleared {
		return
	}
	p.cleared = true
	p.observer.Clear()
}
