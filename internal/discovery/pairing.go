package discovery

import "sync"

// PairState is the pairing-mode state machine spec §9 Design Notes calls
// for, replacing the source's ad hoc pairing_code/paired_uin fields on the
// UDP server object.
type PairState int

const (
	StateIdle PairState = iota
	StateAwaiting
	StatePaired
	StateFailed
)

func (s PairState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StatePaired:
		return "paired"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pairing tracks the lifetime of one pairing attempt: the 6-digit code the
// operator is showing, and the eventual outcome. Done is closed exactly
// once, by the first call to MarkPaired or MarkFailed, letting the owning
// command block on it.
type Pairing struct {
	mu        sync.Mutex
	state     PairState
	code      string
	pairedUIN uint32
	done      chan struct{}
	closeOnce sync.Once
}

// NewPairing returns a Pairing in StateIdle when code is empty (steady
// state, no pairing in progress) or StateAwaiting otherwise.
func NewPairing(code string) *Pairing {
	p := &Pairing{code: code, done: make(chan struct{})}
	if code != "" {
		p.state = StateAwaiting
	}
	return p
}

// Code returns the active pairing code, or "" when not in pairing mode.
func (p *Pairing) Code() string { return p.code }

// State returns the current pairing state.
func (p *Pairing) State() PairState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// MarkPaired transitions to StatePaired, records uin, and signals Done.
// Only the first call has an effect.
func (p *Pairing) MarkPaired(uin uint32) {
	p.mu.Lock()
	if p.state == StateAwaiting {
		p.state = StatePaired
		p.pairedUIN = uin
	}
	p.mu.Unlock()
	p.closeOnce.Do(func() { close(p.done) })
}

// MarkFailed transitions to StateFailed and signals Done. Only the first
// call to MarkPaired or MarkFailed has an effect.
func (p *Pairing) MarkFailed() {
	p.mu.Lock()
	if p.state == StateAwaiting {
		p.state = StateFailed
	}
	p.mu.Unlock()
	p.closeOnce.Do(func() { close(p.done) })
}

// PairedUIN returns the uin recorded by MarkPaired, if any.
func (p *Pairing) PairedUIN() (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pairedUIN, p.state == StatePaired
}

// Done returns a channel closed once pairing concludes, successfully or
// not. Callers in steady state (code == "") must not block on it; it is
// only ever closed by MarkPaired/MarkFailed, and the responder calls
// MarkPaired only while in pairing mode.
func (p *Pairing) Done() <-chan struct{} { return p.done }
