package websocket

import "time"

const maxBackoffShift = 30

// BackoffDelay returns base * 2^(attempt-1)
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base << uint(shift)
}

// Heartbeat decides when to ping. The interval halves while the server is
// busy with a turn, and pings are skipped while other traffic is flowing.
type Heartbeat struct {
	base     time.Duration
	lastSent time.Time
	lastPing time.Time
	awaiting bool
}

// NewHeartbeat creates a heartbeat with the idle interval
func NewHeartbeat(base time.Duration) *Heartbeat {
	return &Heartbeat{base: base}
}

// Interval returns the ping interval for the session's busy state
func (h *Heartbeat) Interval(busy bool) time.Duration {
	if busy {
		return h.base / 2
	}
	return h.base
}

// Sent records outbound traffic
func (h *Heartbeat) Sent(at time.Time) {
	h.lastSent = at
}

// Due reports whether a ping should be sent at now
func (h *Heartbeat) Due(now time.Time, busy bool) bool {
	interval := h.Interval(busy)
	if interval <= 0 {
		return false
	}
	if now.Sub(h.lastSent) < interval/2 {
		return false
	}
	return now.Sub(h.lastPing) >= interval
}

// Pinged records a ping sent at now
func (h *Heartbeat) Pinged(now time.Time) {
	h.lastPing = now
	h.lastSent = now
	h.awaiting = true
}

// Ponged clears the outstanding ping and returns the round trip time
func (h *Heartbeat) Ponged(now time.Time) (time.Duration, bool) {
	if !h.awaiting {
		return 0, false
	}
	h.awaiting = false
	return now.Sub(h.lastPing), true
}

// Overdue reports whether a ping has gone unanswered for two intervals
func (h *Heartbeat) Overdue(now time.Time, busy bool) bool {
	return h.awaiting && now.Sub(h.lastPing) > 2*h.Interval(busy)
}

// Reset forgets history, used when a new connection is established
func (h *Heartbeat) Reset(now time.Time) {
	h.lastSent = now
	h.lastPing = now
	h.awaiting = false
}
