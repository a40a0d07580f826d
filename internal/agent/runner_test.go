package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/concierge/internal/dialogue"
	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/hooks"
	"github.com/soyeahso/concierge/internal/llm"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/soyeahso/concierge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type fixture struct {
	runner       *Runner
	reservations *store.MemoryReservationStore
	sessions     *store.MemorySessionStore
}

func newFixture(t *testing.T, client llm.Client) *fixture {
	t.Helper()
	hotel := domain.DefaultHotel()
	f := &fixture{
		reservations: store.NewMemoryReservationStore(),
		sessions:     store.NewMemorySessionStore(),
	}
	f.runner = NewRunner(RunnerConfig{
		Hotel:        hotel,
		Reservations: f.reservations,
		Sessions:     f.sessions,
		Responder:    NewResponder(ResponderConfig{Hotel: hotel, Client: client}, silentLog()),
	}, silentLog())
	return f
}

func (f *fixture) say(t *testing.T, user, text string) Result {
	t.Helper()
	return f.runner.Handle(context.Background(), Turn{UserID: user, Text: text, Source: "test"})
}

// --- Runner tests ---

func TestRunnerBookingScenario(t *testing.T) {
	f := newFixture(t, nil)

	steps := []struct {
		text  string
		reply string
	}{
		{"I want to book a room", "Please provide check-in date (YYYY-MM-DD)."},
		{"2025-07-01", "Please provide check-out date (YYYY-MM-DD)."},
		{"2025-07-03", "Please choose a room type: standard, deluxe, suite."},
		{"deluxe", "How many guests?"},
	}
	for _, step := range steps {
		res := f.say(t, "test_user123", step.text)
		assert.Equal(t, step.reply, res.Reply, "after %q", step.text)
		assert.Equal(t, domain.IntentBooking, res.Intent)
		assert.Equal(t, dialogue.StatusOK, res.Status)
		assert.False(t, res.Completed)
	}

	res := f.say(t, "test_user123", "2")
	assert.True(t, res.Completed)
	assert.Contains(t, res.Reply, "Reservation ID: 1")
	assert.Contains(t, res.Reply, "Total price: 8000")
	require.NotNil(t, res.Reservation)
	assert.Equal(t, 8000, res.Reservation.TotalPrice)

	all := f.reservations.List(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, "deluxe", all[0].RoomType)
	assert.Equal(t, 2, all[0].NumGuests)
	assert.Equal(t, "test_user123", all[0].UserID)

	s := f.sessions.Load(context.Background(), "test_user123")
	assert.Equal(t, domain.FlowNone, s.Flow)
	assert.Empty(t, s.Context)
	assert.Len(t, s.History, 5)

	res = f.say(t, "test_user123", "What are the hotel amenities?")
	assert.Equal(t, domain.IntentQuestion, res.Intent)
	assert.Equal(t, "Sunset Resort offers pool, spa, restaurant and free Wi-Fi.", res.Reply)
}

func TestRunnerRescheduling(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reservations.Append(context.Background(), domain.Reservation{
		UserID: "a", CheckInDate: "2025-07-01", CheckOutDate: "2025-07-03", RoomType: "suite", NumGuests: 3, TotalPrice: 12000,
	})
	require.NoError(t, err)

	assert.Equal(t, "Please provide your reservation ID.", f.say(t, "a", "I need to reschedule").Reply)
	assert.Equal(t, "Please enter a valid reservation ID.", f.say(t, "a", "the first one").Reply)
	assert.Equal(t, "Please provide new check-in date (YYYY-MM-DD).", f.say(t, "a", "1").Reply)
	res := f.say(t, "a", "2025-08-10 to 2025-08-12")

	assert.True(t, res.Completed)
	assert.Contains(t, res.Reply, "Reservation updated successfully!")
	r, ok := f.reservations.FindByID(context.Background(), 1)
	require.True(t, ok)
	assert.Equal(t, "2025-08-10", r.CheckInDate)
	assert.Equal(t, "2025-08-12", r.CheckOutDate)
	assert.Equal(t, 12000, r.TotalPrice)
	assert.NotNil(t, r.UpdatedAt)
}

func TestRunnerRescheduleNotFound(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 3; i++ {
		_, err := f.reservations.Append(context.Background(), domain.Reservation{
			UserID: "x", CheckInDate: "2025-07-01", CheckOutDate: "2025-07-02", RoomType: "standard", NumGuests: 1, TotalPrice: 5000,
		})
		require.NoError(t, err)
	}
	before := f.reservations.List(context.Background())

	f.say(t, "a", "I would like to change my dates")
	f.say(t, "a", "9999")
	f.say(t, "a", "2025-09-01")
	res := f.say(t, "a", "2025-09-05")

	assert.Equal(t, dialogue.NotFoundReply, res.Reply)
	assert.Equal(t, before, f.reservations.List(context.Background()))
	s := f.sessions.Load(context.Background(), "a")
	assert.Equal(t, domain.FlowNone, s.Flow)
	assert.Empty(t, s.Context)
}

func TestRunnerMalformedDateKeepsContext(t *testing.T) {
	f := newFixture(t, nil)
	f.say(t, "a", "book a room")
	res := f.say(t, "a", "july 1st")

	assert.Equal(t, "Please provide check-in date (YYYY-MM-DD).", res.Reply)
	s := f.sessions.Load(context.Background(), "a")
	assert.Equal(t, domain.FlowBooking, s.Flow)
	assert.Empty(t, s.Context)
}

func TestRunnerUserIsolation(t *testing.T) {
	f := newFixture(t, nil)

	f.say(t, "A", "I want to book a room")
	f.say(t, "B", "I want to book a room")
	f.say(t, "A", "2025-07-01")
	f.say(t, "B", "2025-12-24")
	f.say(t, "A", "2025-07-03")
	f.say(t, "B", "suite")

	a := f.sessions.Load(context.Background(), "A")
	b := f.sessions.Load(context.Background(), "B")

	assert.Equal(t, map[string]any{"checkInDate": "2025-07-01", "checkOutDate": "2025-07-03"}, a.Context)
	// "suite" arrives while check-out is awaited; room types are picked up eagerly.
	assert.Equal(t, map[string]any{"checkInDate": "2025-12-24", "roomType": "suite"}, b.Context)
}

func TestRunnerConcurrentTurnsSameUser(t *testing.T) {
	f := newFixture(t, nil)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.say(t, "busy", fmt.Sprintf("where are you %d", i))
		}(i)
	}
	wg.Wait()

	s := f.sessions.Load(context.Background(), "busy")
	assert.Len(t, s.History, n)
	assert.Equal(t, 0, f.runner.locks.Len())
}

func TestRunnerConcurrentBookings(t *testing.T) {
	f := newFixture(t, nil)

	const users = 10
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			f.say(t, user, "book a standard room from 2025-07-01 to 2025-07-02 for 2 guests")
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()

	all := f.reservations.List(context.Background())
	require.Len(t, all, users)
	seen := map[int]bool{}
	for _, r := range all {
		seen[r.ID] = true
	}
	for id := 1; id <= users; id++ {
		assert.True(t, seen[id], "missing id %d", id)
	}
}

func TestRunnerQuestionViaLLM(t *testing.T) {
	var got llm.CompletionRequest
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			got = req
			return &llm.CompletionResponse{Content: "We don't have a gym, but the spa is lovely."}, nil
		},
	}
	f := newFixture(t, mock)

	res := f.say(t, "a", "Is there a gym?")
	assert.Equal(t, "We don't have a gym, but the spa is lovely.", res.Reply)
	assert.Equal(t, domain.IntentQuestion, res.Intent)
	assert.Contains(t, got.System, "Sunset Resort")
	require.NotEmpty(t, got.Messages)
	assert.Equal(t, "Is there a gym?", got.Messages[len(got.Messages)-1].Content)
}

func TestRunnerQuestionWithoutLLM(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, HelpReply, f.say(t, "a", "Do you allow pets?").Reply)
}

func TestRunnerLLMFailureIsRecoverable(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Code: 500, Message: "down"}
		},
	}
	f := newFixture(t, mock)

	res := f.say(t, "a", "Do you allow pets?")
	assert.Equal(t, dialogue.Apology, res.Reply)
	assert.Equal(t, dialogue.StatusRecoverable, res.Status)

	s := f.sessions.Load(context.Background(), "a")
	require.Len(t, s.History, 1)
	assert.Equal(t, dialogue.Apology, s.History[0].Assistant)
}

func TestRunnerGreetingAndMissingUser(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, GreetingReply, f.say(t, "a", "   ").Reply)

	res := f.runner.Handle(context.Background(), Turn{Text: "book a room"})
	assert.Equal(t, dialogue.Apology, res.Reply)
	assert.Equal(t, dialogue.StatusRecoverable, res.Status)
}

func TestRunnerAmbiguousPrefersBooking(t *testing.T) {
	f := newFixture(t, nil)
	res := f.say(t, "a", "I want to change my room booking")
	assert.Equal(t, domain.IntentBooking, res.Intent)
	assert.Equal(t, domain.FlowBooking, f.sessions.Load(context.Background(), "a").Flow)
}

// panickingReservations blows up on writes.
type panickingReservations struct {
	*store.MemoryReservationStore
}

func (panickingReservations) Append(context.Context, domain.Reservation) (domain.Reservation, error) {
	panic("disk on fire")
}

func TestRunnerPanicRestoresSession(t *testing.T) {
	hotel := domain.DefaultHotel()
	sessions := store.NewMemorySessionStore()
	runner := NewRunner(RunnerConfig{
		Hotel:        hotel,
		Reservations: panickingReservations{store.NewMemoryReservationStore()},
		Sessions:     sessions,
	}, silentLog())
	say := func(text string) Result {
		return runner.Handle(context.Background(), Turn{UserID: "a", Text: text})
	}

	say("book a room")
	say("2025-07-01 to 2025-07-03")
	say("deluxe")
	res := say("2")

	assert.Equal(t, dialogue.Apology, res.Reply)
	assert.Equal(t, dialogue.StatusRecoverable, res.Status)

	s := sessions.Load(context.Background(), "a")
	assert.Equal(t, domain.FlowBooking, s.Flow)
	assert.Equal(t, map[string]any{"checkInDate": "2025-07-01", "checkOutDate": "2025-07-03", "roomType": "deluxe"}, s.Context)
	require.Len(t, s.History, 4)
	assert.Equal(t, dialogue.Apology, s.History[3].Assistant)
}

// failingReservations rejects every write.
type failingReservations struct {
	*store.MemoryReservationStore
}

func (failingReservations) Append(context.Context, domain.Reservation) (domain.Reservation, error) {
	return domain.Reservation{}, errors.New("disk full")
}

func TestRunnerStoreFailureKeepsSlots(t *testing.T) {
	sessions := store.NewMemorySessionStore()
	runner := NewRunner(RunnerConfig{
		Hotel:        domain.DefaultHotel(),
		Reservations: failingReservations{store.NewMemoryReservationStore()},
		Sessions:     sessions,
	}, silentLog())

	res := runner.Handle(context.Background(), Turn{UserID: "a", Text: "book a suite room 2025-07-01 2025-07-04 for 3 guests"})
	assert.Equal(t, dialogue.Apology, res.Reply)
	assert.Equal(t, dialogue.StatusRecoverable, res.Status)

	s := sessions.Load(context.Background(), "a")
	assert.Equal(t, domain.FlowBooking, s.Flow)
	assert.Len(t, s.Context, 4)
}

// failingSessions loses every save.
type failingSessions struct {
	*store.MemorySessionStore
}

func (failingSessions) Save(context.Context, *domain.Session) error {
	return errors.New("read-only")
}

func TestRunnerSaveFailureIsDegraded(t *testing.T) {
	runner := NewRunner(RunnerConfig{
		Hotel:        domain.DefaultHotel(),
		Reservations: store.NewMemoryReservationStore(),
		Sessions:     failingSessions{store.NewMemorySessionStore()},
	}, silentLog())

	res := runner.Handle(context.Background(), Turn{UserID: "a", Text: "book a room"})
	assert.Equal(t, "Please provide check-in date (YYYY-MM-DD).", res.Reply)
	assert.Equal(t, dialogue.StatusDegraded, res.Status)
}

type chanNotifier struct {
	ch  chan domain.Notification
	err error
}

func (c *chanNotifier) Name() string { return "chan" }
func (c *chanNotifier) Notify(_ context.Context, n domain.Notification) error {
	c.ch <- n
	return c.err
}

func TestRunnerNotifiesAsync(t *testing.T) {
	notifier := &chanNotifier{ch: make(chan domain.Notification, 1), err: errors.New("unreachable")}
	runner := NewRunner(RunnerConfig{
		Hotel:        domain.DefaultHotel(),
		Reservations: store.NewMemoryReservationStore(),
		Sessions:     store.NewMemorySessionStore(),
		Notifier:     notifier,
	}, silentLog())

	res := runner.Handle(context.Background(), Turn{UserID: "ig:42", Text: "where is the hotel?", Credential: "tok"})
	assert.Equal(t, dialogue.StatusOK, res.Status)

	select {
	case n := <-notifier.ch:
		assert.Equal(t, "ig:42", n.Recipient)
		assert.Equal(t, res.Reply, n.Text)
		assert.Equal(t, "tok", n.Credential)
	case <-time.After(time.Second):
		t.Fatal("notifier not called")
	}
}

func TestRunnerEmitsHooks(t *testing.T) {
	mgr := hooks.NewManager(silentLog())
	events := make(chan hooks.Payload, 16)
	for _, ev := range []string{hooks.EventFlowStarted, hooks.EventBookingCompleted} {
		mgr.On(ev, "test", func(_ context.Context, p hooks.Payload) error {
			events <- p
			return nil
		})
	}

	runner := NewRunner(RunnerConfig{
		Hotel:        domain.DefaultHotel(),
		Reservations: store.NewMemoryReservationStore(),
		Sessions:     store.NewMemorySessionStore(),
		Hooks:        mgr,
	}, silentLog())

	runner.Handle(context.Background(), Turn{UserID: "a", Text: "book a deluxe room 2025-07-01 2025-07-03 for 2 guests"})

	got := map[string]hooks.Payload{}
	deadline := time.After(time.Second)
	for len(got) < 2 {
		select {
		case p := <-events:
			got[p.Event] = p
		case <-deadline:
			t.Fatalf("hooks not delivered, got %v", got)
		}
	}
	assert.Equal(t, "booking", got[hooks.EventFlowStarted].Data["flow"])
	assert.Equal(t, 1, got[hooks.EventBookingCompleted].Data["reservationId"])
	assert.Equal(t, 8000, got[hooks.EventBookingCompleted].Data["totalPrice"])
}

// --- Sweeper ---

func TestAbandonIdle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	stale := domain.NewSession("stale")
	stale.Begin(domain.FlowBooking)
	stale.Fill(domain.SlotCheckInDate, "2025-07-10")
	stale.LastUpdated = now.Add(-2 * time.Hour)

	fresh := domain.NewSession("fresh")
	fresh.Begin(domain.FlowRescheduling)
	fresh.LastUpdated = now.Add(-5 * time.Minute)

	idleNoFlow := domain.NewSession("idle")
	idleNoFlow.LastUpdated = now.Add(-48 * time.Hour)

	for _, s := range []*domain.Session{stale, fresh, idleNoFlow} {
		require.NoError(t, f.sessions.Save(ctx, s))
	}

	got := f.runner.AbandonIdle(ctx, 30*time.Minute, now)
	assert.Equal(t, []string{"stale"}, got)

	s := f.sessions.Load(ctx, "stale")
	assert.Equal(t, domain.FlowNone, s.Flow)
	assert.Empty(t, s.Context)
	assert.Equal(t, now, s.LastUpdated)

	assert.Equal(t, domain.FlowRescheduling, f.sessions.Load(ctx, "fresh").Flow)
	assert.Empty(t, f.runner.AbandonIdle(ctx, 0, now))
}

func TestNewSweeperSchedule(t *testing.T) {
	f := newFixture(t, nil)

	_, err := NewSweeper(f.runner, time.Minute, "")
	require.NoError(t, err)

	_, err = NewSweeper(f.runner, time.Minute, "not a schedule")
	assert.Error(t, err)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	sw, err := NewSweeper(f.runner, time.Minute, "@every 1h")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
