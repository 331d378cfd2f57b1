package coordinator

import (
	"sync"

	"github.com/griffinplus/logsink/internal/logging"
)

// persistencePusher coalesces SetWritingToLogFile pushes: while one
// exchange is in flight, at most one more (the latest) requested value is
// remembered and sent once the in-flight exchange completes (SPEC_FULL.md
// ambient-stack supplement #1; spec.md §4.6, §8 "coalescing").
type persistencePusher struct {
	mu           sync.Mutex
	sending      bool
	hasPending   bool
	pendingValue bool
	log          *logging.Logger
}

func newPersistencePusher(log *logging.Logger) *persistencePusher {
	return &persistencePusher{log: log}
}

// Request asks for value to be pushed via send. If a push is already in
// flight, value replaces whatever was pending and no new goroutine is
// started — the in-flight push picks it up when it finishes.
func (p *persistencePusher) Request(value bool, send func(bool) error) {
	p.mu.Lock()
	if p.sending {
		p.hasPending = true
		p.pendingValue = value
		p.mu.Unlock()
		return
	}
	p.sending = true
	p.mu.Unlock()

	go p.run(value, send)
}

func (p *persistencePusher) run(value bool, send func(bool) error) {
	for {
		if err := send(value); err != nil {
			// Control-channel failures inside a fire-and-forget setting
			// push are logged-and-ignored (spec.md §7).
			p.log.Warn("set_writing_to_log_file push failed", "error", err)
		}

		p.mu.Lock()
		if p.hasPending {
			value = p.pendingValue
			p.hasPending = false
			p.mu.Unlock()
			continue
		}
		p.sending = false
		p.mu.Unlock()
		return
	}
}
