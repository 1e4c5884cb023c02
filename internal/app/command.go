package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/maaaruch/tg-poll-bot/internal/poll"
)

const usageExamples = "Examples:\n" +
	"/vote 1 \"Is Ronaldo better than Messi?\"\n" +
	"/vote 1 \"Which number do you like the most?\" One Two Three\n" +
	"/vote 5 | Lunch? | Pizza | Sushi | Salad"

type voteRequest struct {
	Minutes int
	Title   string
	Options []string
}

// parseVoteArgs reads "<minutes> <title> [options...]" with shell-style
// quoting, or the same fields separated by '|' when the minutes are followed
// by one. Unquoted shell operators (; & | < >) must be quoted or escaped.
func parseVoteArgs(args string) (voteRequest, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return voteRequest{}, fmt.Errorf("%w: empty", poll.ErrInvalidArguments)
	}

	var fields []string
	if isPipeForm(args) {
		fields = splitPipeArgs(args, -1)
	} else {
		p := shellwords.NewParser()
		words, err := p.Parse(args)
		if err != nil {
			return voteRequest{}, fmt.Errorf("%w: %w", poll.ErrInvalidArguments, err)
		}
		if p.Position != -1 {
			return voteRequest{}, fmt.Errorf("%w: unquoted shell operator after %d fields", poll.ErrInvalidArguments, len(words))
		}
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				fields = append(fields, w)
			}
		}
	}

	if len(fields) < 2 {
		return voteRequest{}, fmt.Errorf("%w: need minutes and a title", poll.ErrInvalidArguments)
	}

	minutes, err := strconv.Atoi(fields[0])
	if err != nil {
		return voteRequest{}, fmt.Errorf("%w: minutes %q is not a number", poll.ErrInvalidArguments, fields[0])
	}

	return voteRequest{
		Minutes: minutes,
		Title:   fields[1],
		Options: fields[2:],
	}, nil
}

// isPipeForm reports whether args look like "5 | Title | A | B".
func isPipeForm(args string) bool {
	head, _, found := strings.Cut(args, "|")
	if !found {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(head))
	return err == nil
}

func splitPipeArgs(s string, n int) []string {
	raw := strings.SplitN(s, "|", n)
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
