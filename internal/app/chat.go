package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/maaaruch/tg-poll-bot/internal/domain"
	"github.com/maaaruch/tg-poll-bot/internal/metrics"
	"github.com/maaaruch/tg-poll-bot/internal/platform/retry"
	"github.com/maaaruch/tg-poll-bot/internal/poll"
	"github.com/maaaruch/tg-poll-bot/internal/storage"
)

// maxMessageLen is in characters; Telegram allows 4096.
const maxMessageLen = 4000

// sender wraps Telegram calls with retries. Client errors other than rate
// limiting are not retried.
type sender struct {
	bot     telegramBot
	policy  retry.Policy
	metrics *metrics.PollMetrics
	log     zerolog.Logger
}

func (s *sender) send(ctx context.Context, kind string, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	p := s.policy
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		s.metrics.SendRetries.Inc()
		s.log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Str("kind", kind).Msg("telegram call retried")
	}

	msg, err := retry.Do(ctx, p, classifyTelegram, func() (tgbotapi.Message, error) {
		return s.bot.Send(c)
	})
	if err != nil && !isNotModified(err) {
		s.metrics.SendFailures.WithLabelValues(kind).Inc()
	}
	return msg, err
}

// request is send for calls answered with a bare APIResponse, such as
// callback answers.
func (s *sender) request(ctx context.Context, kind string, c tgbotapi.Chattable) error {
	err := retry.DoVoid(ctx, s.policy, classifyTelegram, func() error {
		_, err := s.bot.Request(c)
		return err
	})
	if err != nil {
		s.metrics.SendFailures.WithLabelValues(kind).Inc()
	}
	return err
}

func classifyTelegram(err error) retry.Decision {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		switch {
		case tgErr.Code == 429:
			return retry.Decision{Action: retry.After, Wait: time.Duration(tgErr.RetryAfter) * time.Second}
		case tgErr.Code >= 400 && tgErr.Code < 500:
			return retry.Decision{Action: retry.Stop}
		}
	}
	return retry.Decision{Action: retry.Retry}
}

// isNotModified reports Telegram's answer to an edit with unchanged content,
// which is what a repeated render produces.
func isNotModified(err error) bool {
	var tgErr *tgbotapi.Error
	return errors.As(err, &tgErr) && strings.Contains(tgErr.Message, "message is not modified")
}

// chatPoll connects one poll engine to one chat: it renders the poll
// message, reads the button tallies and posts announcements.
type chatPoll struct {
	*sender
	store  *storage.Store
	clock  clockwork.Clock
	chatID int64
	pollID string
}

func (c *chatPoll) Render(ctx context.Context, v poll.View) (poll.MessageHandle, error) {
	text := renderPollText(v)

	if v.Handle.IsZero() {
		m := tgbotapi.NewMessage(c.chatID, text)
		m.ReplyMarkup = voteKeyboard(c.pollID, v.Symbols)
		sent, err := c.send(ctx, "render", m)
		if err != nil {
			return poll.MessageHandle{}, err
		}

		h := poll.MessageHandle{ChatID: c.chatID, MessageID: sent.MessageID}
		if sent.Chat != nil {
			h.ChatID = sent.Chat.ID
		}
		if err := c.store.SetPollMessage(c.pollID, sent.MessageID); err != nil {
			c.log.Error().Err(err).Str("poll_id", c.pollID).Msg("store poll message id")
		}
		return h, nil
	}

	var edit tgbotapi.EditMessageTextConfig
	if v.Remaining > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(v.Handle.ChatID, v.Handle.MessageID, text, voteKeyboard(c.pollID, v.Symbols))
	} else {
		// no reply_markup drops the buttons once voting is over
		edit = tgbotapi.NewEditMessageText(v.Handle.ChatID, v.Handle.MessageID, text)
	}
	if _, err := c.send(ctx, "render", edit); err != nil && !isNotModified(err) {
		return v.Handle, err
	}
	return v.Handle, nil
}

func (c *chatPoll) ReactionCount(ctx context.Context, h poll.MessageHandle) ([]int, error) {
	p, err := c.store.GetPollByMessage(ctx, h.ChatID, h.MessageID)
	if err != nil {
		return nil, fmt.Errorf("find poll by message %d/%d: %w", h.ChatID, h.MessageID, err)
	}
	return c.store.Counts(ctx, p.ID, p.SymbolCount)
}

func (c *chatPoll) Notify(ctx context.Context, text string) error {
	_, err := c.send(ctx, "notify", tgbotapi.NewMessage(c.chatID, text))
	return err
}

func (c *chatPoll) Resolved(_ context.Context, _ *poll.State, o poll.Outcome) {
	c.metrics.PollsFinished.WithLabelValues(o.Kind.String()).Inc()
	if err := c.store.FinishPoll(c.pollID, domain.PollStatusResolved, o.Announcement(), c.clock.Now()); err != nil {
		c.log.Error().Err(err).Str("poll_id", c.pollID).Msg("archive resolved poll")
	}
}

func renderPollText(v poll.View) string {
	var sb strings.Builder
	sb.WriteString(v.Title)
	sb.WriteString("\n")
	if v.Remaining > 0 {
		sb.WriteString(fmt.Sprintf("You have %s remaining!\n", minutes(v.Remaining)))
	} else {
		sb.WriteString("Voting is closed.\n")
	}

	if v.Mode == poll.ModeBinary {
		sb.WriteString(fmt.Sprintf("\n%s agree   %s disagree", poll.SymbolAgree, poll.SymbolDisagree))
	} else {
		sb.WriteString("\n")
		for i, opt := range v.Options {
			sb.WriteString(fmt.Sprintf("%s %s\n", v.Symbols[i], opt))
		}
	}

	return truncate(strings.TrimRight(sb.String(), "\n"))
}

// truncate cuts text to maxMessageLen characters on a rune boundary.
func truncate(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageLen {
		return text
	}
	n := 0
	for i := range text {
		if n == maxMessageLen {
			return text[:i] + "\n\n(truncated)"
		}
		n++
	}
	return text
}

func minutes(n int) string {
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}

func voteKeyboard(pollID string, symbols []poll.Symbol) tgbotapi.InlineKeyboardMarkup {
	const perRow = 5

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, sym := range symbols {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(string(sym), voteData(pollID, i)))
		if len(row) == perRow {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func voteData(pollID string, idx int) string {
	return fmt.Sprintf("vote:%s:%d", pollID, idx)
}
