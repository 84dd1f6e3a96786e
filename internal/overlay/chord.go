package overlay

import "time"

// Key identifies a physical key reported by the OS-wide hook. Key
// identities are platform-specific; the chord semantics are not.
type Key string

// Default chord keys.
const (
	KeyAlt Key = "alt"
	KeyD   Key = "d"
)

// chordTracker decides when the two-key chord is physically active.
// It filters OS key-repeat (a key-down for a key already recorded as
// down) and debounces key-ups: a matching key-down arriving within the
// window annuls the key-up, so bouncy switches do not flap the chord.
type chordTracker struct {
	modifier  Key
	activator Key
	window    time.Duration
	clock     Clock

	down    map[Key]bool
	pending map[Key]Timer

	// onChange fires with the new active state. Called with the
	// controller lock held.
	onChange func(active bool)
}

func newChordTracker(modifier, activator Key, window time.Duration, clock Clock, onChange func(bool)) *chordTracker {
	return &chordTracker{
		modifier:  modifier,
		activator: activator,
		window:    window,
		clock:     clock,
		down:      make(map[Key]bool),
		pending:   make(map[Key]Timer),
		onChange:  onChange,
	}
}

// active reports whether both chord keys are physically down.
func (c *chordTracker) active() bool {
	return c.down[c.modifier] && c.down[c.activator]
}

// keyDown records a press. Repeats are filtered; a press during the
// key-up debounce window annuls the pending release.
func (c *chordTracker) keyDown(key Key) {
	if key != c.modifier && key != c.activator {
		return
	}

	if t, ok := c.pending[key]; ok {
		t.Stop()
		delete(c.pending, key)
		// The key never conceptually released; no transition.
		return
	}

	if c.down[key] {
		// OS key-repeat.
		return
	}

	was := c.active()
	c.down[key] = true
	if now := c.active(); now != was {
		c.onChange(now)
	}
}

// keyUp schedules the release after the debounce window.
func (c *chordTracker) keyUp(key Key, expire func(Key)) {
	if key != c.modifier && key != c.activator {
		return
	}
	if !c.down[key] || c.pending[key] != nil {
		return
	}

	if c.window <= 0 {
		c.commitRelease(key)
		return
	}
	c.pending[key] = c.clock.AfterFunc(c.window, func() { expire(key) })
}

// commitRelease applies a debounced key-up. Called under the controller
// lock once the window passes without an annulment.
func (c *chordTracker) commitRelease(key Key) {
	delete(c.pending, key)
	if !c.down[key] {
		return
	}

	was := c.active()
	delete(c.down, key)
	if now := c.active(); now != was {
		c.onChange(now)
	}
}
