package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zenai/internal/command"
	"zenai/internal/domain"
	"zenai/internal/metrics"
)

const (
	defaultMaxTurns  = 20
	defaultRateBurst = 5
	eventBuffer      = 64
)

// LoopConfig holds all dependencies and tuning parameters for the loop.
type LoopConfig struct {
	Model          domain.Model
	Tools          Executor
	Catalog        Catalog
	Instructions   *InstructionBuilder
	Journal        domain.Journal
	Metrics        *metrics.Collector
	Logger         *slog.Logger
	MaxTurns       int     // turns per episode (default 20)
	TurnsPerMinute float64 // model call pacing, 0 disables
	HistoryLimit   int
	Version        string
}

// Loop drives episodes: model turn, parse, dispatch, feedback, repeat.
// Each session runs at most one episode at a time.
type Loop struct {
	model      domain.Model
	dispatcher *Dispatcher
	catalog    Catalog
	instr      *InstructionBuilder
	journal    domain.Journal
	sessions   *SessionStore
	limiter    *RateLimiter
	metrics    *metrics.Collector
	logger     *slog.Logger
	maxTurns   int
	version    string
	startTime  time.Time
}

// NewLoop creates a loop with the given configuration.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		model:      cfg.Model,
		dispatcher: NewDispatcher(cfg.Tools, cfg.Journal, cfg.Metrics, cfg.Logger),
		catalog:    cfg.Catalog,
		instr:      cfg.Instructions,
		journal:    cfg.Journal,
		sessions:   NewSessionStore(cfg.HistoryLimit),
		limiter:    NewRateLimiter(defaultRateBurst, cfg.TurnsPerMinute),
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		maxTurns:   cfg.MaxTurns,
		version:    cfg.Version,
		startTime:  time.Now(),
	}
}

// Send starts a new episode for message. allowed restricts the tools the
// episode may run; an empty list means no restriction. Events arrive on the
// returned channel, which is closed when the episode ends or pauses.
func (l *Loop) Send(ctx context.Context, sessionID, message string, allowed []string) (<-chan domain.Event, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	s := l.sessions.GetOrCreate(sessionID)

	s.mu.Lock()
	if err := busy(s.state); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	needStart := !s.started
	s.mu.Unlock()

	if needStart {
		if err := l.model.StartSession(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("start model session: %w", err)
		}
	}

	s.mu.Lock()
	if err := busy(s.state); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.started = true
	s.episode++
	ep := s.episode
	s.state = domain.StateRunning
	s.message, s.pending, s.turn = message, message, 0
	s.allow = NewAllowList(allowed)
	s.done = make(chan struct{})
	s.abandon = make(chan struct{})
	done, abandon := s.done, s.abandon
	allowKey := s.allow.Key()
	s.mu.Unlock()

	l.metrics.EpisodeStarted()
	l.logger.Info("episode started", "session", sessionID, "episode", ep, "allow", allowKey)
	return l.start(ctx, s, ep, done, abandon), nil
}

func busy(state domain.RunState) error {
	switch state {
	case domain.StateRunning:
		return ErrEpisodeRunning
	case domain.StatePaused:
		return ErrEpisodePaused
	}
	return nil
}

// Pause asks the running episode to stop before its next turn.
func (l *Loop) Pause(sessionID string) error {
	s, ok := l.sessions.Get(sessionID)
	if !ok {
		return ErrNotRunning
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case domain.StatePaused:
		return nil
	case domain.StateRunning:
		s.state = domain.StatePaused
		l.logger.Info("pause requested", "session", sessionID, "turn", s.turn)
		return nil
	}
	return ErrNotRunning
}

// Resume continues a paused episode with the prompt it would have sent next.
// It waits for the paused runner to exit so no turn is run twice. Events of
// the paused segment that were not read yet are discarded.
func (l *Loop) Resume(ctx context.Context, sessionID string) (<-chan domain.Event, error) {
	s, ok := l.sessions.Get(sessionID)
	if !ok {
		return nil, ErrNotPaused
	}
	s.mu.Lock()
	if s.state != domain.StatePaused {
		s.mu.Unlock()
		return nil, ErrNotPaused
	}
	s.abandonSegment()
	prev := s.done
	s.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	if s.state != domain.StatePaused {
		s.mu.Unlock()
		return nil, ErrNotPaused
	}
	s.state = domain.StateRunning
	ep := s.episode
	s.done = make(chan struct{})
	s.abandon = make(chan struct{})
	done, abandon := s.done, s.abandon
	s.mu.Unlock()

	l.logger.Info("episode resumed", "session", sessionID, "episode", ep)
	return l.start(ctx, s, ep, done, abandon), nil
}

// Stop ends the running or paused episode. An in-flight turn completes first.
func (l *Loop) Stop(sessionID string) error {
	s, ok := l.sessions.Get(sessionID)
	if !ok {
		return ErrNotRunning
	}
	s.mu.Lock()
	if !s.state.Active() {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.state = domain.StateStopped
	s.mu.Unlock()

	l.metrics.EpisodeEnded(domain.ReasonStopped)
	l.logger.Info("episode stopped", "session", sessionID)
	return nil
}

// Reset stops any episode, drops the session and resets the model's
// conversation for it.
func (l *Loop) Reset(ctx context.Context, sessionID string) error {
	if s, ok := l.sessions.Get(sessionID); ok {
		if err := l.Stop(sessionID); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
		s.mu.Lock()
		s.abandonSegment()
		done := s.done
		s.mu.Unlock()
		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		l.sessions.Drop(sessionID)
	}
	if err := l.model.ResetSession(ctx, sessionID); err != nil {
		return fmt.Errorf("reset model session: %w", err)
	}
	l.logger.Info("session reset", "session", sessionID)
	return nil
}

// State returns the run state of a session, idle when unknown.
func (l *Loop) State(sessionID string) domain.RunState {
	s, ok := l.sessions.Get(sessionID)
	if !ok {
		return domain.StateIdle
	}
	return s.State()
}

// Session returns the session for id if it exists.
func (l *Loop) Session(sessionID string) (*Session, bool) {
	return l.sessions.Get(sessionID)
}

func (l *Loop) start(ctx context.Context, s *Session, ep int, done, abandon chan struct{}) <-chan domain.Event {
	events := make(chan domain.Event, eventBuffer)
	go l.run(ctx, s, ep, done, abandon, events)
	return events
}

// end moves episode ep to STOPPED. It reports false when the episode was
// already ended or replaced.
func (l *Loop) end(s *Session, ep int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.episode != ep || !s.state.Active() {
		return false
	}
	s.state = domain.StateStopped
	return true
}

func (l *Loop) run(ctx context.Context, s *Session, ep int, done, abandon chan struct{}, events chan<- domain.Event) {
	clean := false
	defer close(events)
	defer close(done)
	defer func() {
		if !clean && l.end(s, ep) {
			l.metrics.EpisodeEnded(domain.ReasonCancelled)
			l.logger.Info("episode cancelled", "session", s.ID, "err", ctx.Err())
		}
	}()

	emit := func(e domain.Event) bool {
		e.Session = s.ID
		select {
		case events <- e:
			return true
		case <-abandon:
			return false
		case <-ctx.Done():
			return false
		}
	}
	finish := func(turn int, reason string) {
		if l.end(s, ep) {
			l.metrics.EpisodeEnded(reason)
		}
		l.logger.Info("episode finished", "session", s.ID, "turn", turn, "reason", reason)
		emit(domain.Event{Type: domain.EventDone, Turn: turn, State: domain.StateStopped, Reason: reason})
		clean = true
	}

	for {
		s.mu.Lock()
		if s.episode != ep || s.state == domain.StateStopped {
			turn := s.turn
			s.mu.Unlock()
			emit(domain.Event{Type: domain.EventDone, Turn: turn, State: domain.StateStopped, Reason: domain.ReasonStopped})
			clean = true
			return
		}
		if s.state == domain.StatePaused {
			turn := s.turn
			s.mu.Unlock()
			l.logger.Info("episode paused", "session", s.ID, "turn", turn)
			emit(domain.Event{Type: domain.EventPaused, Turn: turn, State: domain.StatePaused})
			clean = true
			return
		}
		if s.turn >= l.maxTurns {
			turn := s.turn
			s.mu.Unlock()
			finish(turn, domain.ReasonMaxTurns)
			return
		}
		s.turn++
		turn, prompt, message, allow := s.turn, s.pending, s.message, s.allow
		s.mu.Unlock()

		if err := l.limiter.Wait(ctx); err != nil {
			return
		}

		feedback, reason, err := l.runTurn(ctx, s, turn, prompt, message, allow, emit)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("turn failed", "session", s.ID, "turn", turn, "err", err)
			if l.end(s, ep) {
				l.metrics.EpisodeEnded(domain.ReasonError)
			}
			emit(domain.Event{Type: domain.EventError, Turn: turn, State: domain.StateStopped, Reason: domain.ReasonError, Error: err.Error()})
			clean = true
			return
		}
		if reason != "" {
			finish(turn, reason)
			return
		}

		s.mu.Lock()
		if s.episode == ep {
			s.pending = feedback
		}
		s.mu.Unlock()
	}
}

// runTurn sends one prompt and dispatches the commands in the reply. It
// returns the next prompt, or a done reason when the episode is over.
func (l *Loop) runTurn(ctx context.Context, s *Session, turn int, prompt, message string, allow *AllowList, emit func(domain.Event) bool) (string, string, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	start := time.Now()
	text, err := l.model.SendTurn(ctx, domain.TurnRequest{
		Session:      s.ID,
		Prompt:       prompt,
		Instructions: l.instructions(allow),
	})
	l.metrics.ModelTurn(err == nil, time.Since(start))
	if err != nil {
		return "", "", fmt.Errorf("model call failed: %w", err)
	}
	s.record(prompt, text)
	l.logger.Debug("model responded", "session", s.ID, "turn", turn, "len", len(text))

	var cmds []domain.Command
	if command.HasCommands(text) {
		cmds = command.Parse(text)
	}
	emit(domain.Event{Type: domain.EventResponse, Turn: turn, Text: text, Speech: command.Strip(text), State: domain.StateRunning})
	if len(cmds) == 0 {
		return "", domain.ReasonNoCommands, nil
	}

	results := make([]domain.Envelope, 0, len(cmds))
	for _, cmd := range cmds {
		if !allow.Allows(cmd.Name) {
			l.logger.Info("command dropped by allow-list", "session", s.ID, "tool", cmd.Name)
			l.metrics.ToolDropped(cmd.Name)
			continue
		}
		env := l.dispatcher.Dispatch(ctx, s.ID, turn, cmd)
		results = append(results, env)
		emit(domain.Event{Type: domain.EventToolResult, Turn: turn, Tool: &env, State: domain.StateRunning})
		if env.Action == domain.ActionSpeak && env.Success {
			emit(domain.Event{Type: domain.EventSpeech, Turn: turn, Text: formatResult(env.Result)})
		}
		if env.Action == domain.ActionStop {
			return "", domain.ReasonStop, nil
		}
	}
	return FeedbackPrompt(message, results), "", nil
}

func (l *Loop) instructions(allow *AllowList) string {
	if l.instr == nil {
		return ""
	}
	return l.instr.Build(allow)
}
