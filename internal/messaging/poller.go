package messaging

import "time"

// Poller tracks the lifetime of the conversation refresh loop. Each
// Start invalidates ticks scheduled by earlier loops, so a screen that is
// left and re-entered never runs two loops at once.
type Poller struct {
	interval time.Duration
	gen      int
	running  bool
}

// NewPoller returns a stopped poller. A non-positive interval uses PollInterval.
func NewPoller(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = PollInterval
	}
	return &Poller{interval: interval}
}

// Start begins a new loop and returns its generation.
func (p *Poller) Start() int {
	p.gen++
	p.running = true
	return p.gen
}

// Stop ends the current loop. Ticks already scheduled become stale.
func (p *Poller) Stop() {
	p.gen++
	p.running = false
}

// Live reports whether a tick from generation gen should still fire.
func (p *Poller) Live(gen int) bool {
	return p.running && gen == p.gen
}

// Interval returns the tick period.
func (p *Poller) Interval() time.Duration { return p.interval }
