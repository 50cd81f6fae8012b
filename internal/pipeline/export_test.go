package pipeline

import "time"

// SetBackoff shortens sink retry delays for tests.
func (p *Pipeline) SetBackoff(initial, maxBackoff time.Duration) {
	p.backoff = initial
	p.maxBackoff = maxBackoff
}
