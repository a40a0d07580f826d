package domain

// Intent is the classification of a single turn.
type Intent string

const (
	IntentBooking      Intent = "booking"
	IntentRescheduling Intent = "rescheduling"
	IntentQuestion     Intent = "question"
)

// Flow returns the flow an intent drives, or FlowNone for questions.
func (i Intent) Flow() Flow {
	switch i {
	case IntentBooking:
		return FlowBooking
	case IntentRescheduling:
		return FlowRescheduling
	}
	return FlowNone
}
