// Package overlay implements the capture surface controller: the global
// chord listener, the visibility state machine, drag persistence, and
// payload validation. The controller owns all of its state - no
// globals - and talks to the engine exclusively through the driving
// port. Rendering belongs to the host UI, which observes the controller
// through the Listener interface.
package overlay

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stashdrop-labs/stashdrop/internal/core/domain"
	"github.com/stashdrop-labs/stashdrop/internal/core/ports/driving"
	"github.com/stashdrop-labs/stashdrop/internal/core/services"
	"github.com/stashdrop-labs/stashdrop/internal/logger"
)

// State is the single global overlay state.
type State string

// Overlay states.
const (
	StateHidden       State = "hidden"
	StatePressing     State = "pressing"
	StateLatched      State = "latched"
	StateSaving       State = "saving"
	StateConfirmation State = "confirmation"
	StateError        State = "error"
)

// Mode selects the capture surface presented when the overlay opens.
type Mode string

// Overlay modes.
const (
	ModeText Mode = "text"
	ModeDrop Mode = "drop"
)

// Listener receives overlay side effects. The host UI renders them; a
// nil listener is valid and drops them.
type Listener interface {
	// Show presents the overlay in the given mode.
	Show(mode Mode)

	// Hide dismisses the overlay.
	Hide()

	// Confirm flashes the save confirmation for the item.
	Confirm(item *domain.Item)

	// Fail displays a one-line failure reason until dismissed.
	Fail(reason string)

	// Notice displays an inline validation message without leaving the
	// current state.
	Notice(reason string)
}

// Config tunes the controller.
type Config struct {
	// HoldThreshold is how long the chord must be held before release
	// no longer hides the overlay (default 400ms).
	HoldThreshold time.Duration

	// DebounceWindow annuls key-ups followed quickly by key-downs
	// (default 50ms).
	DebounceWindow time.Duration

	// ConfirmDuration is how long the confirmation shows (default 1.5s).
	ConfirmDuration time.Duration

	// Modifier and Activator form the chord (default Alt + D).
	Modifier  Key
	Activator Key
}

func (c Config) withDefaults() Config {
	if c.HoldThreshold <= 0 {
		c.HoldThreshold = 400 * time.Millisecond
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 50 * time.Millisecond
	}
	if c.ConfirmDuration <= 0 {
		c.ConfirmDuration = 1500 * time.Millisecond
	}
	if c.Modifier == "" {
		c.Modifier = KeyAlt
	}
	if c.Activator == "" {
		c.Activator = KeyD
	}
	return c
}

// Controller drives overlay visibility and hands validated captures to
// the engine. All methods are safe to call from any goroutine; the
// keyboard hook posts events and returns immediately.
type Controller struct {
	cfg      Config
	engine   driving.Engine
	listener Listener
	clock    Clock

	mu          sync.Mutex
	state       State
	mode        Mode
	fromLatched bool // pressing was entered from latched
	dragDepth   int
	holdTimer   Timer
	confirmT    Timer
	chord       *chordTracker
}

// Option configures the controller.
type Option func(*Controller)

// WithClock substitutes the timer source, used in tests.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithListener registers the UI surface.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// NewController creates the controller in the hidden state.
func NewController(cfg Config, engine driving.Engine, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg.withDefaults(),
		engine: engine,
		clock:  realClock{},
		state:  StateHidden,
		mode:   ModeText,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.chord = newChordTracker(
		c.cfg.Modifier, c.cfg.Activator, c.cfg.DebounceWindow,
		c.clock, c.chordChanged,
	)
	return c
}

// State returns the current overlay state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DragActive reports whether a drag is in progress over the surface.
func (c *Controller) DragActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragDepth > 0
}

// ==================== Keyboard events ====================

// KeyDown feeds a global key press from the OS hook.
func (c *Controller) KeyDown(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chord.keyDown(key)
}

// KeyUp feeds a global key release from the OS hook.
func (c *Controller) KeyUp(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chord.keyUp(key, c.debounceExpired)
}

// debounceExpired commits a key release after the debounce window.
func (c *Controller) debounceExpired(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chord.commitRelease(key)
}

// chordChanged runs under the lock whenever the chord flips.
func (c *Controller) chordChanged(active bool) {
	if active {
		c.chordActivated()
	} else {
		c.chordReleased()
	}
}

// chordActivated applies the chord-down transitions.
func (c *Controller) chordActivated() {
	switch c.state {
	case StateHidden:
		if c.dragDepth > 0 {
			// Context-aware open: land straight in drop mode.
			c.setState(StateLatched)
			c.mode = ModeDrop
			c.show()
			return
		}
		c.fromLatched = false
		c.mode = ModeText
		c.setState(StatePressing)
		c.show()
		c.startHoldTimer()

	case StateLatched:
		c.fromLatched = true
		c.setState(StatePressing)
		// Overlay already visible.
		c.startHoldTimer()

	case StatePressing, StateSaving, StateConfirmation, StateError:
		// Save must complete visibly; errors wait for dismissal.
	}
}

// chordReleased applies the chord-up transitions.
func (c *Controller) chordReleased() {
	if c.state != StatePressing {
		// Latched ignores release: an explicit press/hold cycle is
		// required to dismiss.
		return
	}

	c.stopHoldTimer()
	if c.fromLatched && c.dragDepth == 0 {
		c.setState(StateHidden)
		c.hide()
		return
	}
	// A quick tap from hidden latches; an in-progress drag pins the
	// overlay open regardless.
	c.setState(StateLatched)
}

// holdElapsed fires when the chord was held past the threshold.
func (c *Controller) holdElapsed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePressing {
		return
	}
	c.holdTimer = nil
	c.setState(StateLatched)
}

// ==================== Drag events ====================

// DragEnter raises the drag flag. Nested enters are counted so the
// overlay does not flicker when the pointer crosses internal
// boundaries.
func (c *Controller) DragEnter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dragDepth++
}

// DragLeave lowers the drag flag.
func (c *Controller) DragLeave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragDepth > 0 {
		c.dragDepth--
	}
}

// ==================== Capture events ====================

// TextSubmit captures typed text.
func (c *Controller) TextSubmit(text string) {
	c.capture(func(ctx context.Context) (*domain.Item, error) {
		return c.engine.IngestText(ctx, text)
	}, validateText(text))
}

// Paste captures pasted text, classifying links.
func (c *Controller) Paste(text string) {
	if services.IsURL(text) {
		c.capture(func(ctx context.Context) (*domain.Item, error) {
			return c.engine.IngestLink(ctx, text, "")
		}, validateText(text))
		return
	}
	c.TextSubmit(text)
}

// Drop captures dropped files by path. Validation happens here: paths
// with rejected extensions never reach the engine.
func (c *Controller) Drop(paths []string) {
	var reason string
	valid := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := services.ClassifyFile(p); err != nil {
			reason = domain.Reason(err)
			continue
		}
		valid = append(valid, p)
	}

	if len(valid) == 0 {
		if reason == "" {
			reason = domain.Reason(domain.ErrInvalidInput)
		}
		c.notice(reason)
		return
	}

	c.capture(func(ctx context.Context) (*domain.Item, error) {
		var last *domain.Item
		for _, p := range valid {
			item, err := c.engine.IngestFile(ctx, p)
			if err != nil {
				return nil, err
			}
			last = item
		}
		return last, nil
	}, "")
}

// DropBytes captures a dropped file the host could not name a path for.
func (c *Controller) DropBytes(filename string, data []byte) {
	if _, err := services.ClassifyFile(filename); err != nil {
		c.notice(domain.Reason(err))
		return
	}
	c.capture(func(ctx context.Context) (*domain.Item, error) {
		return c.engine.IngestBytes(ctx, filename, data)
	}, "")
}

// Cancel dismisses the overlay outside of a save.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateSaving:
		// Save must complete visibly.
	case StateError, StateConfirmation, StateLatched, StatePressing:
		c.stopHoldTimer()
		c.stopConfirmTimer()
		c.setState(StateHidden)
		c.hide()
	case StateHidden:
	}
}

// Dismiss acknowledges a displayed error.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateError {
		return
	}
	c.setState(StateHidden)
	c.hide()
}

// capture validates, enters saving, and runs the ingest off the event
// goroutine. The overlay is locked visible until saved or save_failed.
func (c *Controller) capture(ingest func(context.Context) (*domain.Item, error), invalidReason string) {
	if invalidReason != "" {
		c.notice(invalidReason)
		return
	}

	c.mu.Lock()
	if c.state == StateSaving {
		c.mu.Unlock()
		return
	}
	c.stopHoldTimer()
	c.stopConfirmTimer()
	c.setState(StateSaving)
	if c.listener != nil {
		c.listener.Show(c.mode)
	}
	c.mu.Unlock()

	go func() {
		item, err := ingest(context.Background())
		if err != nil {
			c.saveFailed(err)
			return
		}
		c.saved(item)
	}()
}

// saved handles the engine's save-completion callback.
func (c *Controller) saved(item *domain.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSaving {
		return
	}
	c.setState(StateConfirmation)
	if c.listener != nil {
		c.listener.Confirm(item)
	}
	c.confirmT = c.clock.AfterFunc(c.cfg.ConfirmDuration, c.confirmElapsed)
}

// saveFailed handles the engine's failure callback.
func (c *Controller) saveFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSaving {
		return
	}
	logger.Warn("save failed: %v", err)
	c.setState(StateError)
	if c.listener != nil {
		c.listener.Fail(domain.Reason(err))
	}
}

// confirmElapsed hides the overlay after the confirmation flash.
func (c *Controller) confirmElapsed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConfirmation {
		return
	}
	c.confirmT = nil
	c.setState(StateHidden)
	c.hide()
}

// ==================== Internals ====================

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	logger.Debug("overlay %s -> %s", c.state, s)
	c.state = s
}

func (c *Controller) show() {
	if c.listener != nil {
		c.listener.Show(c.mode)
	}
}

func (c *Controller) hide() {
	c.mode = ModeText
	if c.listener != nil {
		c.listener.Hide()
	}
}

func (c *Controller) notice(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener != nil {
		c.listener.Notice(reason)
	}
}

func (c *Controller) startHoldTimer() {
	c.stopHoldTimer()
	c.holdTimer = c.clock.AfterFunc(c.cfg.HoldThreshold, c.holdElapsed)
}

func (c *Controller) stopHoldTimer() {
	if c.holdTimer != nil {
		c.holdTimer.Stop()
		c.holdTimer = nil
	}
}

func (c *Controller) stopConfirmTimer() {
	if c.confirmT != nil {
		c.confirmT.Stop()
		c.confirmT = nil
	}
}

// validateText returns a reason for unusable text payloads.
func validateText(text string) string {
	if strings.TrimSpace(text) == "" {
		return domain.Reason(domain.ErrInvalidInput)
	}
	return ""
}
