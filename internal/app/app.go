package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/maaaruch/tg-poll-bot/internal/domain"
	"github.com/maaaruch/tg-poll-bot/internal/metrics"
	"github.com/maaaruch/tg-poll-bot/internal/platform/retry"
	"github.com/maaaruch/tg-poll-bot/internal/poll"
	"github.com/maaaruch/tg-poll-bot/internal/registry"
	"github.com/maaaruch/tg-poll-bot/internal/storage"
)

const historyLimit = 10

// telegramBot is the part of *tgbotapi.BotAPI the bot uses.
type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Options struct {
	Metrics *metrics.PollMetrics
	Retry   retry.Policy
	Clock   clockwork.Clock
	Logger  *zerolog.Logger
}

type App struct {
	bot      telegramBot
	store    *storage.Store
	polls    *registry.Manager
	metrics  *metrics.PollMetrics
	sender   *sender
	clock    clockwork.Clock
	log      zerolog.Logger
	voteSalt string

	// ctx outlives single updates; poll loops run on it.
	ctx context.Context
	wg  sync.WaitGroup
}

func New(bot telegramBot, store *storage.Store, voteSalt string, opts Options) *App {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewPollMetrics(prometheus.NewRegistry())
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Policy{MaxAttempts: 3, InitialBackoff: 500 * time.Millisecond, RateLimitBackoff: 5 * time.Second}
	}
	if opts.Retry.Clock == nil {
		opts.Retry.Clock = opts.Clock
	}
	return &App{
		bot:     bot,
		store:   store,
		polls:   registry.NewManager(),
		metrics: opts.Metrics,
		sender: &sender{
			bot:     bot,
			policy:  opts.Retry,
			metrics: opts.Metrics,
			log:     log,
		},
		clock:    opts.Clock,
		log:      log,
		voteSalt: voteSalt,
		ctx:      context.Background(),
	}
}

// Run reads updates until ctx is cancelled. Running polls are stopped
// without announcing a result.
func (a *App) Run(ctx context.Context) {
	a.ctx = ctx

	if n, err := a.store.AbandonActivePolls(a.clock.Now()); err != nil {
		a.log.Error().Err(err).Msg("abandon polls from previous run")
	} else if n > 0 {
		a.log.Warn().Int64("polls", n).Msg("polls from previous run marked abandoned")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	defer a.wg.Wait()
	defer a.polls.StopAll()

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				a.handleMessage(update.Message)
			} else if update.CallbackQuery != nil {
				a.handleCallback(update.CallbackQuery)
			}
		}
	}
}

func (a *App) hashUserID(userID int64) string {
	data := fmt.Sprintf("%s:%d", a.voteSalt, userID)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func (a *App) reply(chatID int64, text string) {
	if _, err := a.sender.send(a.ctx, "reply", tgbotapi.NewMessage(chatID, text)); err != nil {
		a.log.Warn().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}

// ---------- Updates ----------

func (a *App) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start", "help":
		a.reply(msg.Chat.ID, helpText)

	case "vote":
		a.handleVote(msg)

	case "polls":
		a.handlePolls(msg)

	case "cancel":
		a.handleCancel(msg)

	case "history":
		a.handleHistory(msg)
	}
}

func (a *App) handleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || !strings.HasPrefix(cq.Data, "vote:") {
		return
	}

	text := a.recordVote(cq.From.ID, cq.Data)
	if err := a.sender.request(a.ctx, "answer", tgbotapi.NewCallback(cq.ID, text)); err != nil {
		a.log.Debug().Err(err).Msg("answer callback")
	}
}

// recordVote stores the button press and returns the text shown to the voter.
func (a *App) recordVote(userID int64, data string) string {
	parts := strings.Split(strings.TrimPrefix(data, "vote:"), ":")
	if len(parts) != 2 {
		return ""
	}
	pollID, err := uuid.Parse(parts[0])
	if err != nil {
		return ""
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return ""
	}

	entry, ok := a.polls.Get(pollID)
	if !ok {
		a.metrics.VotesRecorded.WithLabelValues("closed").Inc()
		return "This poll is closed."
	}
	snap := entry.Engine.Snapshot()
	if snap.Status != poll.StatusActive || idx < 0 || idx >= len(snap.Symbols) {
		a.metrics.VotesRecorded.WithLabelValues("closed").Inc()
		return "This poll is closed."
	}

	err = a.store.RecordVote(a.hashUserID(userID), pollID.String(), idx, a.clock.Now())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		a.metrics.VotesRecorded.WithLabelValues("closed").Inc()
		return "This poll is closed."
	case err != nil:
		a.metrics.VotesRecorded.WithLabelValues("error").Inc()
		a.log.Error().Err(err).Str("poll_id", pollID.String()).Msg("record vote")
		return "Something went wrong, try again."
	}

	a.metrics.VotesRecorded.WithLabelValues("accepted").Inc()
	return fmt.Sprintf("You voted %s", snap.Symbols[idx])
}

// ---------- Commands ----------

const helpText = "I run timed polls.\n\n" +
	"/vote minutes \"Title\" [option ...] – start a poll (up to 10 options; none means agree/disagree)\n" +
	"/polls – running polls in this chat\n" +
	"/cancel N – stop running poll N from /polls (only its author)\n" +
	"/history – last finished polls in this chat\n\n" +
	usageExamples

func (a *App) handleVote(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	req, err := parseVoteArgs(msg.CommandArguments())
	if err != nil {
		a.reject(chatID, err)
		return
	}

	s, err := poll.New(req.Minutes, req.Title, req.Options)
	if err != nil {
		a.reject(chatID, err)
		return
	}

	pollID := s.ID.String()
	rec := domain.PollRecord{
		ID:            pollID,
		ChatID:        chatID,
		CreatorUserID: msg.From.ID,
		Title:         s.Title,
		SymbolCount:   len(s.Symbols),
		TotalMinutes:  s.TotalMinutes,
		CreatedAt:     a.clock.Now(),
	}
	if err := a.store.CreatePoll(rec); err != nil {
		a.log.Error().Err(err).Msg("create poll")
		a.reply(chatID, "Could not create the poll, try again.")
		return
	}

	cp := &chatPoll{
		sender: a.sender,
		store:  a.store,
		clock:  a.clock,
		chatID: chatID,
		pollID: pollID,
	}
	engine := poll.NewEngine(s, cp, cp, cp,
		poll.WithClock(a.clock),
		poll.WithLogger(a.log),
		poll.WithResolver(cp),
	)

	if err := engine.Start(a.ctx); err != nil {
		a.log.Error().Err(err).Str("poll_id", pollID).Msg("start poll")
		if ferr := a.store.FinishPoll(pollID, domain.PollStatusAbandoned, "", a.clock.Now()); ferr != nil {
			a.log.Error().Err(ferr).Str("poll_id", pollID).Msg("archive unstarted poll")
		}
		a.metrics.PollsRejected.WithLabelValues("render_failure").Inc()
		a.reply(chatID, "Could not post the poll, try again.")
		return
	}

	a.polls.Add(&registry.Entry{
		ID:        s.ID,
		ChatID:    chatID,
		CreatorID: msg.From.ID,
		StartedAt: rec.CreatedAt,
		Engine:    engine,
	})
	a.metrics.PollsCreated.Inc()
	a.metrics.PollsActive.Inc()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		engine.Run(a.ctx)
		a.polls.Remove(s.ID)
		a.metrics.PollsActive.Dec()
		if o, ok := engine.Outcome(); ok {
			a.log.Debug().Str("poll_id", pollID).Stringer("outcome", o.Kind).Msg("poll loop finished")
		}
	}()
}

func (a *App) reject(chatID int64, err error) {
	var reason, text string
	switch {
	case errors.Is(err, poll.ErrTooManyOptions):
		reason = "too_many_options"
		text = "Voting options should be less than or equal to ten (<= 10)."
	case errors.Is(err, poll.ErrInvalidDuration):
		reason = "invalid_duration"
		text = "The duration must be a positive number of minutes.\n\n" + usageExamples
	default:
		reason = "invalid_arguments"
		text = "Kindly check the arguments.\n\n" + usageExamples
	}
	a.metrics.PollsRejected.WithLabelValues(reason).Inc()
	a.reply(chatID, text)
}

func (a *App) handlePolls(msg *tgbotapi.Message) {
	entries := a.polls.InChat(msg.Chat.ID)
	if len(entries) == 0 {
		a.reply(msg.Chat.ID, "No polls are running here. Start one with /vote.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Running polls:\n")
	for i, e := range entries {
		snap := e.Engine.Snapshot()
		sb.WriteString(fmt.Sprintf("%d. %s — %s left\n", i+1, snap.Title, minutes(snap.Remaining())))
	}
	sb.WriteString("\nStop one with /cancel N")
	a.reply(msg.Chat.ID, sb.String())
}

func (a *App) handleCancel(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	n, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments()))
	entries := a.polls.InChat(chatID)
	if err != nil || n < 1 || n > len(entries) {
		a.reply(chatID, "Usage: /cancel N, where N is the number from /polls.")
		return
	}

	e := entries[n-1]
	if e.CreatorID != msg.From.ID {
		a.reply(chatID, "Only the author of the poll can cancel it.")
		return
	}

	if !a.polls.Stop(e.ID) {
		a.reply(chatID, "That poll has already finished.")
		return
	}
	err = a.store.FinishPoll(e.ID.String(), domain.PollStatusCancelled, "", a.clock.Now())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		a.log.Error().Err(err).Str("poll_id", e.ID.String()).Msg("archive cancelled poll")
	}
	a.metrics.PollsFinished.WithLabelValues("cancelled").Inc()

	a.reply(chatID, fmt.Sprintf("Poll \"%s\" cancelled.", e.Engine.Snapshot().Title))
}

func (a *App) handleHistory(msg *tgbotapi.Message) {
	polls, err := a.store.RecentPolls(msg.Chat.ID, historyLimit)
	if err != nil {
		a.log.Error().Err(err).Msg("recent polls")
		a.reply(msg.Chat.ID, "Could not load the poll history.")
		return
	}
	if len(polls) == 0 {
		a.reply(msg.Chat.ID, "No finished polls yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Finished polls:\n")
	for _, p := range polls {
		result := p.Outcome
		if result == "" {
			result = "(" + p.Status + ")"
		}
		sb.WriteString(fmt.Sprintf("• %s — %s\n", p.Title, result))
	}

	a.reply(msg.Chat.ID, truncate(sb.String()))
}
