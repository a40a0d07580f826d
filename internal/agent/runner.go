// Package agent runs concierge turns: it serializes each guest's messages,
// routes them through intent classification, the dialogue flows and the
// question responder, persists the session and pushes the reply out.
package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/concierge/internal/dialogue"
	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/hooks"
	"github.com/soyeahso/concierge/internal/intent"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/soyeahso/concierge/internal/metrics"
)

// GreetingReply answers an empty message outside a flow.
const GreetingReply = "Hello! Welcome to our hotel concierge. " + HelpReply

// Turn is one inbound guest message.
type Turn struct {
	UserID string
	Text   string
	// Credential is handed to the notifier untouched.
	Credential string
	// Source names the surface the message came from ("chat", "gateway", "irc").
	Source string
}

// Result is the outcome of a turn. Reply is always set.
type Result struct {
	TurnID      string              `json:"turnId"`
	Reply       string              `json:"reply"`
	Intent      domain.Intent       `json:"intent,omitempty"`
	Status      dialogue.Status     `json:"status"`
	Completed   bool                `json:"completed,omitempty"`
	Reservation *domain.Reservation `json:"reservation,omitempty"`
	Duration    time.Duration       `json:"duration"`
}

// RunnerConfig wires a Runner's collaborators. Notifier, Hooks and Metrics
// are optional.
type RunnerConfig struct {
	Hotel        domain.Hotel
	Reservations domain.ReservationStore
	Sessions     domain.SessionStore
	Responder    *Responder
	Classifier   intent.Classifier
	Notifier     domain.Notifier
	Hooks        *hooks.Manager
	Metrics      *metrics.Metrics
}

// Runner is the per-turn pipeline.
type Runner struct {
	classifier   intent.Classifier
	orchestrator *dialogue.Orchestrator
	responder    *Responder
	sessions     domain.SessionStore
	notifier     domain.Notifier
	hooks        *hooks.Manager
	metrics      *metrics.Metrics
	locks        *KeyedMutex
	log          *logging.Logger
	now          func() time.Time
}

// NewRunner creates a turn runner.
func NewRunner(cfg RunnerConfig, log *logging.Logger) *Runner {
	responder := cfg.Responder
	if responder == nil {
		responder = NewResponder(ResponderConfig{Hotel: cfg.Hotel}, log)
	}
	return &Runner{
		classifier:   cfg.Classifier,
		orchestrator: dialogue.New(cfg.Hotel, cfg.Reservations, log),
		responder:    responder,
		sessions:     cfg.Sessions,
		notifier:     cfg.Notifier,
		hooks:        cfg.Hooks,
		metrics:      cfg.Metrics,
		locks:        NewKeyedMutex(),
		log:          log.Sub("agent"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes one turn and always returns a reply. Turns for the same
// user run one at a time; different users proceed concurrently.
func (r *Runner) Handle(ctx context.Context, t Turn) Result {
	start := time.Now()
	turnID := uuid.NewString()
	log := r.log.With("turnId", turnID)

	if strings.TrimSpace(t.UserID) == "" {
		log.Warn().Str("source", t.Source).Msg("turn without user id")
		return Result{TurnID: turnID, Reply: dialogue.Apology, Status: dialogue.StatusRecoverable}
	}

	r.emit(ctx, hooks.EventTurnReceived, map[string]any{
		"turnId": turnID, "userId": t.UserID, "source": t.Source, "text": t.Text,
	})

	res := r.turn(ctx, t, log)
	res.TurnID = turnID
	res.Duration = time.Since(start)

	log.Info().
		Str("userId", t.UserID).
		Str("source", t.Source).
		Str("intent", string(res.Intent)).
		Str("status", string(res.Status)).
		Dur("duration", res.Duration).
		Msg("turn handled")

	r.metrics.RecordTurn(string(res.Intent), string(res.Status), res.Duration)
	r.emit(ctx, hooks.EventReplySending, map[string]any{
		"turnId": turnID, "userId": t.UserID, "reply": res.Reply, "status": string(res.Status),
	})
	r.notify(t, res.Reply, log)
	return res
}

// turn runs the critical section: load, classify, advance, save.
func (r *Runner) turn(ctx context.Context, t Turn, log *logging.Logger) (res Result) {
	unlock := r.locks.Lock(t.UserID)
	defer unlock()

	var original *domain.Session
	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Str("userId", t.UserID).
				Str("panic", fmt.Sprint(p)).
				Str("stack", string(debug.Stack())).
				Msg("turn panicked")
			res = r.abort(ctx, original, t, res.Intent, log)
		}
	}()

	original = r.sessions.Load(ctx, t.UserID)
	work := original.Clone()

	if strings.TrimSpace(t.Text) == "" && !work.Active() {
		return r.finish(ctx, work, t, Result{Reply: GreetingReply, Status: dialogue.StatusOK}, log)
	}

	decision := r.classifier.Classify(work, t.Text)
	res.Intent = decision.Intent
	if decision.Ambiguous {
		log.Warn().Str("userId", t.UserID).Str("text", t.Text).Msg("message matched booking and rescheduling keywords; booking wins")
	}
	if decision.Started {
		r.emit(ctx, hooks.EventFlowStarted, map[string]any{"userId": t.UserID, "flow": string(work.Flow)})
	}

	if decision.Intent == domain.IntentQuestion {
		ans, err := r.responder.Answer(ctx, work.History, t.Text)
		if err != nil {
			log.Error().Err(err).Str("userId", t.UserID).Msg("answering question failed")
			return r.abort(ctx, original, t, decision.Intent, log)
		}
		log.Debug().Str("userId", t.UserID).Str("answer", ans.Source).Msg("question answered")
		res.Reply = ans.Text
		res.Status = dialogue.StatusOK
		return r.finish(ctx, work, t, res, log)
	}

	out := r.orchestrator.Advance(ctx, work, t.Text, decision.Sticky)
	res.Reply = out.Reply
	res.Status = out.Status
	res.Completed = out.Completed
	res.Reservation = out.Reservation
	r.observe(ctx, t.UserID, out)

	return r.finish(ctx, work, t, res, log)
}

// finish records the exchange and saves the session. A failed save still
// answers the guest; the turn is reported as degraded.
func (r *Runner) finish(ctx context.Context, s *domain.Session, t Turn, res Result, log *logging.Logger) Result {
	s.Record(t.Text, res.Reply, r.now())
	if err := r.sessions.Save(ctx, s); err != nil {
		log.Error().Err(err).Str("userId", t.UserID).Msg("saving session failed")
		if res.Status == dialogue.StatusOK {
			res.Status = dialogue.StatusDegraded
		}
	}
	return res
}

// abort answers with the apology and keeps the session as it was before
// the turn, apart from the history entry.
func (r *Runner) abort(ctx context.Context, original *domain.Session, t Turn, in domain.Intent, log *logging.Logger) (res Result) {
	res = Result{Reply: dialogue.Apology, Intent: in, Status: dialogue.StatusRecoverable}
	if original == nil {
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("userId", t.UserID).Str("panic", fmt.Sprint(p)).Msg("saving session after failure panicked")
		}
	}()

	s := original.Clone()
	s.Record(t.Text, dialogue.Apology, r.now())
	if err := r.sessions.Save(ctx, s); err != nil {
		log.Error().Err(err).Str("userId", t.UserID).Msg("saving session after failure failed")
	}
	return res
}

// observe turns a flow outcome into hook events and metrics.
func (r *Runner) observe(ctx context.Context, userID string, out dialogue.Outcome) {
	switch {
	case out.Status == dialogue.StatusRecoverable:
		r.metrics.RecordReservation(metrics.OutcomeFailed)
	case out.NotFound:
		r.metrics.RecordReservation(metrics.OutcomeNotFound)
		r.emit(ctx, hooks.EventReservationNotFound, map[string]any{"userId": userID})
	case out.Completed && out.Reservation != nil && out.Flow == domain.FlowBooking:
		r.metrics.RecordReservation(metrics.OutcomeCreated)
		r.emit(ctx, hooks.EventBookingCompleted, reservationData(*out.Reservation))
	case out.Completed && out.Reservation != nil && out.Flow == domain.FlowRescheduling:
		r.metrics.RecordReservation(metrics.OutcomeRescheduled)
		r.emit(ctx, hooks.EventReservationRescheduled, reservationData(*out.Reservation))
	}
}

func reservationData(res domain.Reservation) map[string]any {
	return map[string]any{
		"userId":        res.UserID,
		"reservationId": res.ID,
		"roomType":      res.RoomType,
		"checkInDate":   res.CheckInDate,
		"checkOutDate":  res.CheckOutDate,
		"numGuests":     res.NumGuests,
		"totalPrice":    res.TotalPrice,
	}
}

func (r *Runner) emit(ctx context.Context, event string, data map[string]any) {
	if r.hooks == nil {
		return
	}
	r.hooks.EmitAsync(context.WithoutCancel(ctx), event, data)
}

// notify pushes the reply to the guest in the background. Failures are
// logged and never reach the dialogue.
func (r *Runner) notify(t Turn, reply string, log *logging.Logger) {
	if r.notifier == nil {
		return
	}
	n := domain.Notification{Recipient: t.UserID, Text: reply, Credential: t.Credential}
	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.Error().Str("panic", fmt.Sprint(p)).Msg("notifier panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := r.notifier.Notify(ctx, n)
		r.metrics.RecordNotification(r.notifier.Name(), err)
		if err != nil {
			log.Warn().Err(err).Str("userId", t.UserID).Str("notifier", r.notifier.Name()).Msg("notification failed")
		}
	}()
}

// Sessions exposes the session store for operator surfaces.
func (r *Runner) Sessions() domain.SessionStore { return r.sessions }
