package poll

import (
	"fmt"

	"github.com/google/uuid"
)

type Status int

const (
	StatusActive Status = iota
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type Mode int

const (
	ModeBinary Mode = iota
	ModeEnumerated
)

func (m Mode) String() string {
	switch m {
	case ModeBinary:
		return "binary"
	case ModeEnumerated:
		return "enumerated"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// State is one in-flight or finished poll. Options, Symbols and Counts are
// positionally coupled: Counts[i] is the tally for Symbols[i], which labels
// Options[i] in enumerated mode.
type State struct {
	ID             uuid.UUID
	Title          string
	Options        []string
	Symbols        []Symbol
	TotalMinutes   int
	ElapsedMinutes int
	Counts         []int
	Status         Status
}

// New validates the request and returns an active poll with zeroed counters.
func New(totalMinutes int, title string, options []string) (*State, error) {
	if len(options) > MaxOptions {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyOptions, len(options))
	}
	if totalMinutes <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDuration, totalMinutes)
	}

	opts := make([]string, len(options))
	copy(opts, options)
	symbols := SymbolsFor(opts)

	return &State{
		ID:           uuid.New(),
		Title:        title,
		Options:      opts,
		Symbols:      symbols,
		TotalMinutes: totalMinutes,
		Counts:       make([]int, len(symbols)),
		Status:       StatusActive,
	}, nil
}

func (s *State) Mode() Mode {
	if len(s.Options) == 0 {
		return ModeBinary
	}
	return ModeEnumerated
}

func (s *State) Remaining() int {
	return s.TotalMinutes - s.ElapsedMinutes
}

// advance moves the countdown by one tick and reports whether the poll just expired.
func (s *State) advance() bool {
	if s.Status != StatusActive {
		return false
	}
	s.ElapsedMinutes++
	if s.ElapsedMinutes >= s.TotalMinutes {
		s.ElapsedMinutes = s.TotalMinutes
		s.Status = StatusExpired
		return true
	}
	return false
}

func (s *State) clone() State {
	c := *s
	c.Options = append([]string(nil), s.Options...)
	c.Symbols = append([]Symbol(nil), s.Symbols...)
	c.Counts = append([]int(nil), s.Counts...)
	return c
}
