package app

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maaaruch/tg-poll-bot/internal/poll"
)

func TestParseVoteArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args string
		want voteRequest
	}{
		{"binary", `1 "Is Ronaldo better than Messi?"`, voteRequest{1, "Is Ronaldo better than Messi?", []string{}}},
		{"options", `1 "Which number?" One Two Three`, voteRequest{1, "Which number?", []string{"One", "Two", "Three"}}},
		{"quoted option", `3 Colour 'Dark red' Blue`, voteRequest{3, "Colour", []string{"Dark red", "Blue"}}},
		{"pipes", "5 | Lunch? | Pizza | Sushi", voteRequest{5, "Lunch?", []string{"Pizza", "Sushi"}}},
		{"pipes empty parts", "5 || Lunch? | | Pizza", voteRequest{5, "Lunch?", []string{"Pizza"}}},
		{"negative minutes parse", `-2 "Title"`, voteRequest{-2, "Title", []string{}}},
		{"eleven options parse", `1 T a b c d e f g h i j k`, voteRequest{1, "T", strings.Fields("a b c d e f g h i j k")}},
		{"pipe inside quoted title", `5 "Pick A|B" X Y`, voteRequest{5, "Pick A|B", []string{"X", "Y"}}},
		{"quoted operators", `1 "Snack?" 'Chips&Dip' "Tea;Coffee" "<3"`, voteRequest{1, "Snack?", []string{"Chips&Dip", "Tea;Coffee", "<3"}}},
		{"escaped operator", `1 Snack? Chips\&Dip Nuts`, voteRequest{1, "Snack?", []string{"Chips&Dip", "Nuts"}}},
		{"pipes with spaces", "10|Best year?|2023|2024", voteRequest{10, "Best year?", []string{"2023", "2024"}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseVoteArgs(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Minutes, got.Minutes)
			assert.Equal(t, tt.want.Title, got.Title)
			assert.ElementsMatch(t, tt.want.Options, got.Options)
			assert.Equal(t, len(tt.want.Options), len(got.Options))
			for i := range tt.want.Options {
				assert.Equal(t, tt.want.Options[i], got.Options[i], "option order must be kept")
			}
		})
	}
}

func TestParseVoteArgs_Invalid(t *testing.T) {
	t.Parallel()

	for _, args := range []string{
		"",
		"   ",
		"5",
		`five "Title"`,
		`1 "unterminated`,
		"| Title | A",
		"1.5 Title",
		// unquoted shell operators would cut the option list short
		`1 "Snack?" Chips&Dip Nuts Fruit`,
		`1 "Snack?" Tea;Coffee Water`,
		`1 "Snack?" <3 Cats`,
		`1 "Snack?" Yes > No`,
		`1 T a b c d e f g h i j; k`,
		`Title | 5 | A`,
	} {
		_, err := parseVoteArgs(args)
		assert.True(t, errors.Is(err, poll.ErrInvalidArguments), "args=%q err=%v", args, err)
	}
}

func TestSplitPipeArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    string
		n    int
		want []string
	}{
		{"basic", "Title | Pass", 2, []string{"Title", "Pass"}},
		{"trim", "  A   |   B  ", 2, []string{"A", "B"}},
		{"keep_remainder", "A|B|C", 2, []string{"A", "B|C"}},
		{"unbounded", "A|B|C|D", -1, []string{"A", "B", "C", "D"}},
		{"empty_parts_removed", "A||B", 3, []string{"A", "B"}},
		{"leading_empty", " | P", 2, []string{"P"}},
		{"trailing_empty", "T | ", 2, []string{"T"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitPipeArgs(tt.s, tt.n))
		})
	}
}

func FuzzParseVoteArgs(f *testing.F) {
	for _, s := range []string{
		`1 "Title" A B`,
		"5 | T | A | B",
		`0 ""`,
		`3 'x' "y`,
		"|||",
	} {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, s string) {
		req, err := parseVoteArgs(s)
		if err != nil {
			if !errors.Is(err, poll.ErrInvalidArguments) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			return
		}
		if req.Title == "" {
			t.Fatalf("empty title accepted for %q", s)
		}
		for _, o := range req.Options {
			if strings.TrimSpace(o) == "" {
				t.Fatalf("blank option in %q: %v", s, req.Options)
			}
		}
	})
}
