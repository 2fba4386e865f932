package likes

import "time"

// slidingWindow allows at most limit events per window. The window is kept as
// the list of event timestamps (unix millis), pruned on every check.
type slidingWindow struct {
	limit  int
	window time.Duration
}

func (w slidingWindow) enabled() bool {
	return w.limit > 0 && w.window > 0
}

// allow prunes stamps to the window ending at now and reports whether one
// more event fits. When it does, now is appended to the returned stamps.
func (w slidingWindow) allow(stamps []int64, now time.Time) ([]int64, bool) {
	cutoff := now.Add(-w.window).UnixMilli()
	kept := stamps[:0:0]
	for _, ts := range stamps {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= w.limit {
		return kept, false
	}
	return append(kept, now.UnixMilli()), true
}
