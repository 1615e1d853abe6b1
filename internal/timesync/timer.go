package timesync

import (
	"sync"
	"time"
)

// Timer is a single-shot, re-armable deadline. Arm replaces any
// pending deadline; Cancel drops it. Tests substitute a fake to
// observe the durations the scheduler picks.
type Timer interface {
	Arm(d time.Duration)
	Cancel()
}

// WallTimer drives a callback from a time.Timer.
type WallTimer struct {
	mu     sync.Mutex
	timer  *time.Timer
	expire func()
}

func NewWallTimer(expire func()) *WallTimer {
	return &WallTimer{expire: expire}
}

func (t *WallTimer) Arm(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer == nil {
		t.timer = time.AfterFunc(d, t.expire)
		return
	}
	t.timer.Stop()
	t.timer.Reset(d)
}

func (t *WallTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}
