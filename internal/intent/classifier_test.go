package intent

import (
	"testing"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifyFresh(t *testing.T) {
	tests := []struct {
		text      string
		intent    domain.Intent
		flow      domain.Flow
		ambiguous bool
	}{
		{"I want to book a room", domain.IntentBooking, domain.FlowBooking, false},
		{"Can I RESERVE something?", domain.IntentBooking, domain.FlowBooking, false},
		{"I'd like to stay two nights", domain.IntentBooking, domain.FlowBooking, false},
		{"when can I check in", domain.IntentBooking, domain.FlowBooking, false},
		{"I need to reschedule", domain.IntentRescheduling, domain.FlowRescheduling, false},
		{"please modify my dates", domain.IntentRescheduling, domain.FlowRescheduling, false},
		{"change my reservation", domain.IntentBooking, domain.FlowBooking, true},
		{"What are the hotel amenities?", domain.IntentQuestion, domain.FlowNone, false},
		{"where are you located", domain.IntentQuestion, domain.FlowNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s := domain.NewSession("alice")
			d := Classifier{}.Classify(s, tt.text)
			assert.Equal(t, tt.intent, d.Intent)
			assert.Equal(t, tt.flow, s.Flow)
			assert.Equal(t, tt.ambiguous, d.Ambiguous)
			assert.Equal(t, tt.flow != domain.FlowNone, d.Started)
			assert.False(t, d.Sticky)
		})
	}
}

func TestClassifySticky(t *testing.T) {
	s := domain.NewSession("alice")
	s.Begin(domain.FlowBooking)
	s.Fill(domain.SlotCheckInDate, "2025-07-01")

	d := Classifier{}.Classify(s, "actually I want to reschedule")
	assert.Equal(t, domain.IntentBooking, d.Intent)
	assert.True(t, d.Sticky)
	assert.False(t, d.Started)
	assert.Equal(t, "2025-07-01", s.String(domain.SlotCheckInDate), "sticky flow keeps its slots")

	s.Begin(domain.FlowRescheduling)
	d = Classifier{}.Classify(s, "book a suite")
	assert.Equal(t, domain.IntentRescheduling, d.Intent)
	assert.True(t, d.Sticky)
}

func TestClassifyCustomKeywords(t *testing.T) {
	c := Classifier{Booking: []string{"reservar"}, Rescheduling: []string{"cambiar"}}

	s := domain.NewSession("alice")
	assert.Equal(t, domain.IntentBooking, c.Classify(s, "quiero reservar").Intent)

	s = domain.NewSession("bob")
	assert.Equal(t, domain.IntentRescheduling, c.Classify(s, "cambiar fechas").Intent)

	s = domain.NewSession("carol")
	assert.Equal(t, domain.IntentQuestion, c.Classify(s, "book a room").Intent)
}
