package likes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindow_Allow(t *testing.T) {
	w := slidingWindow{limit: 2, window: time.Minute}
	now := time.UnixMilli(1_000_000)

	stamps, ok := w.allow(nil, now)
	assert.True(t, ok)
	stamps, ok = w.allow(stamps, now.Add(time.Second))
	assert.True(t, ok)
	stamps, ok = w.allow(stamps, now.Add(2*time.Second))
	assert.False(t, ok)
	assert.Len(t, stamps, 2)

	// first stamp leaves the window
	stamps, ok = w.allow(stamps, now.Add(time.Minute+500*time.Millisecond))
	assert.True(t, ok)
	assert.Len(t, stamps, 2)
}

func TestSlidingWindow_Disabled(t *testing.T) {
	assert.False(t, slidingWindow{}.enabled())
	assert.False(t, slidingWindow{limit: 3}.enabled())
	assert.True(t, slidingWindow{limit: 3, window: time.Second}.enabled())
}
