package spektrum

// EnvEventKind identifies one environment transition.
type EnvEventKind int

const (
	EnvVisible EnvEventKind = iota
	EnvHidden
	EnvOnline
	EnvOffline
)

// String returns the string representation of an EnvEventKind.
func (k EnvEventKind) String() string {
	switch k {
	case EnvVisible:
		return "visible"
	case EnvHidden:
		return "hidden"
	case EnvOnline:
		return "online"
	case EnvOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// EnvEvent is one visibility or network transition.
type EnvEvent struct {
	Kind EnvEventKind
}

// EnvSource feeds visibility and network signals into the client. The
// client keeps its own authoritative flags, so a source may deliver
// duplicate or rapidly toggling events without desynchronizing it.
type EnvSource interface {
	// Events returns the signal stream. The channel is closed by Close.
	Events() <-chan EnvEvent
}

// Signals is a push-based EnvSource for embedders that observe the host
// environment themselves, and for tests that inject synthetic transitions.
// The zero value is not usable; call NewSignals.
type Signals struct {
	ch chan EnvEvent
}

// NewSignals creates a Signals source. The client assumes visible and
// online until told otherwise.
func NewSignals() *Signals {
	return &Signals{ch: make(chan EnvEvent, 16)}
}

// Events implements EnvSource.
func (s *Signals) Events() <-chan EnvEvent { return s.ch }

// SetVisible reports a visibility transition.
func (s *Signals) SetVisible(visible bool) {
	if visible {
		s.push(EnvEvent{Kind: EnvVisible})
	} else {
		s.push(EnvEvent{Kind: EnvHidden})
	}
}

// SetOnline reports a network transition.
func (s *Signals) SetOnline(online bool) {
	if online {
		s.push(EnvEvent{Kind: EnvOnline})
	} else {
		s.push(EnvEvent{Kind: EnvOffline})
	}
}

func (s *Signals) push(ev EnvEvent) {
	// Drop rather than block a stalled consumer; the client only cares
	// about the latest reading and duplicates are harmless.
	select {
	case s.ch <- ev:
	default:
	}
}
