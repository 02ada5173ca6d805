package scene

// Timeline owns the scene's simulated time cursor.
type Timeline struct {
	FrameStart int
	FrameEnd   int
	FPS        float64
	FPSBase    float64

	current int
	held    bool
}

func NewTimeline(start, end int, fps, fpsBase float64) *Timeline {
	return &Timeline{
		FrameStart: start,
		FrameEnd:   end,
		FPS:        fps,
		FPSBase:    fpsBase,
		current:    start,
	}
}

func (tl *Timeline) Frame() int { return tl.current }

// SetFrame moves the cursor. Actions are evaluated lazily against it.
func (tl *Timeline) SetFrame(frame int) { tl.current = frame }

// FramePeriod is the duration of one frame in seconds.
func (tl *Timeline) FramePeriod() float64 {
	if tl.FPS == 0 {
		return 0
	}
	base := tl.FPSBase
	if base == 0 {
		base = 1
	}
	return base / tl.FPS
}

// TimeContext is exclusive access to the cursor. Release restores the
// frame that was current at Acquire.
type TimeContext struct {
	tl    *Timeline
	saved int
	done  bool
}

// Acquire starts a sampling pass. Nested acquisition panics since two
// passes would race on the cursor.
func (tl *Timeline) Acquire() *TimeContext {
	if tl.held {
		panic("scene: timeline already acquired")
	}
	tl.held = true
	return &TimeContext{tl: tl, saved: tl.current}
}

func (tc *TimeContext) SetFrame(frame int)  { tc.tl.SetFrame(frame) }
func (tc *TimeContext) Timeline() *Timeline { return tc.tl }

// Release is safe to call more than once.
func (tc *TimeContext) Release() {
	if tc.done {
		return
	}
	tc.done = true
	tc.tl.current = tc.saved
	tc.tl.held = false
}
