package localstore

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// TimerScheduler delivers continuations on a channel after the requested
// delay. The handle is sent so the receiver can pass it back as the
// execution name.
type TimerScheduler struct {
	mu     sync.Mutex
	next   int
	timers map[string]*time.Timer
	fire   chan string
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[string]*time.Timer),
		fire:   make(chan string, 1),
	}
}

// C returns the channel continuations are delivered on.
func (s *TimerScheduler) C() <-chan string {
	return s.fire
}

func (s *TimerScheduler) Schedule(_ context.Context, delay time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	handle := "local-" + strconv.Itoa(s.next)
	s.timers[handle] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, live := s.timers[handle]
		delete(s.timers, handle)
		s.mu.Unlock()
		if !live {
			return
		}
		// a full channel means a continuation is already waiting
		select {
		case s.fire <- handle:
		default:
		}
	})
	return handle, nil
}

// Cancel stops a pending continuation. Unknown handles are ignored.
func (s *TimerScheduler) Cancel(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[handle]; ok {
		t.Stop()
		delete(s.timers, handle)
	}
	return nil
}

// Pending reports how many continuations are still waiting to fire.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
