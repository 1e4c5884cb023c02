package poll

import "fmt"

type OutcomeKind int

const (
	OutcomeDraw OutcomeKind = iota
	OutcomeAgree
	OutcomeDisagree
	OutcomeWinner
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDraw:
		return "draw"
	case OutcomeAgree:
		return "agree"
	case OutcomeDisagree:
		return "disagree"
	case OutcomeWinner:
		return "winner"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of a finished poll. Option, Symbol and Index are set
// only for OutcomeWinner.
type Outcome struct {
	Kind   OutcomeKind
	Option string
	Symbol Symbol
	Index  int
}

func Draw() Outcome {
	return Outcome{Kind: OutcomeDraw, Index: -1}
}

// Announcement is the chat text for the outcome.
func (o Outcome) Announcement() string {
	switch o.Kind {
	case OutcomeAgree:
		return "Voters agree."
	case OutcomeDisagree:
		return "Voters disagree."
	case OutcomeWinner:
		return fmt.Sprintf("%s %s has won the vote!", o.Symbol, o.Option)
	default:
		return "It's a draw!"
	}
}

// Tally picks the outcome from the final counts. counts[i] belongs to
// symbols[i] (and options[i] in enumerated mode); the winner is found by
// position only. A poll nobody voted in is a draw, and so is any tie on the
// maximum.
func Tally(symbols []Symbol, options []string, counts []int) Outcome {
	if len(counts) == 0 || len(counts) != len(symbols) {
		return Draw()
	}

	maxCount := counts[0]
	for _, c := range counts[1:] {
		if c > maxCount {
			maxCount = c
		}
	}

	if maxCount == 0 {
		return Draw()
	}

	winner, hits := -1, 0
	for i, c := range counts {
		if c == maxCount {
			hits++
			if winner < 0 {
				winner = i
			}
		}
	}
	if hits != 1 {
		return Draw()
	}

	if len(options) == 0 {
		switch symbols[winner] {
		case SymbolAgree:
			return Outcome{Kind: OutcomeAgree, Symbol: SymbolAgree, Index: winner}
		case SymbolDisagree:
			return Outcome{Kind: OutcomeDisagree, Symbol: SymbolDisagree, Index: winner}
		}
		return Draw()
	}
	if winner >= len(options) {
		return Draw()
	}
	return Outcome{
		Kind:   OutcomeWinner,
		Option: options[winner],
		Symbol: symbols[winner],
		Index:  winner,
	}
}
