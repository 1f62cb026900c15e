package camera

import "time"

// DefaultLockTimeout bounds how long a request waits for the camera
// before being turned away.
const DefaultLockTimeout = 10 * time.Second

// AccessLock serializes camera ownership across streaming, capture and
// detection. It is a single-token semaphore with a bounded wait: callers
// that cannot take the token within the timeout are rejected rather than
// queued indefinitely.
type AccessLock struct {
	token   chan struct{}
	timeout time.Duration
}

// NewAccessLock returns a lock with the given acquisition timeout.
// Non-positive timeouts fall back to DefaultLockTimeout.
func NewAccessLock(timeout time.Duration) *AccessLock {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	l := &AccessLock{
		token:   make(chan struct{}, 1),
		timeout: timeout,
	}
	l.token <- struct{}{}
	return l
}

// Acquire takes the lock, waiting up to the configured timeout. It
// returns false when the camera stayed busy for the whole wait.
func (l *AccessLock) Acquire() bool {
	select {
	case <-l.token:
		return true
	case <-time.After(l.timeout):
		return false
	}
}

// TryAcquire takes the lock only if it is immediately free.
func (l *AccessLock) TryAcquire() bool {
	select {
	case <-l.token:
		return true
	default:
		return false
	}
}

// Release returns the lock. It must only be called by the current holder.
func (l *AccessLock) Release() {
	select {
	case l.token <- struct{}{}:
	default:
		panic("camera: AccessLock released while not held")
	}
}

// Timeout reports the configured acquisition timeout.
func (l *AccessLock) Timeout() time.Duration {
	return l.timeout
}
