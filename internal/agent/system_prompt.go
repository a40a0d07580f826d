package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/llm"
)

// maxPromptHistory caps how many earlier exchanges go into a question prompt.
const maxPromptHistory = 3

// BuildSystemPrompt describes the hotel to the text-generation service.
func BuildSystemPrompt(h domain.Hotel, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a hotel booking assistant for %s. ", h.Name)
	b.WriteString("Handle booking, rescheduling, and questions. Be concise and friendly.\n\n")

	fmt.Fprintf(&b, "Current date: %s\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Hotel: %s\n", h.Name)
	fmt.Fprintf(&b, "Location: %s\n", h.Location)
	if len(h.Amenities) > 0 {
		fmt.Fprintf(&b, "Amenities: %s\n", strings.Join(h.Amenities, ", "))
	}
	fmt.Fprintf(&b, "Check-in time: %s\n", h.CheckInTime)
	fmt.Fprintf(&b, "Check-out time: %s\n", h.CheckOutTime)
	if h.CancellationPolicy != "" {
		fmt.Fprintf(&b, "Cancellation policy: %s\n", h.CancellationPolicy)
	}

	b.WriteString("\nRoom types:\n")
	for _, name := range h.RoomNames() {
		room := h.Rooms[name]
		fmt.Fprintf(&b, "- %s: %d per stay, up to %d guests\n", name, room.Price, room.Capacity)
	}

	b.WriteString("\nGuidelines:\n")
	b.WriteString("- Answer only from the hotel information above; say so when you don't know.\n")
	b.WriteString("- To book or reschedule, ask the guest to say \"book a room\" or \"reschedule\".\n")

	return b.String()
}

// BuildQuestionRequest assembles the completion request for a free-form
// question: the hotel context, the guest's last few exchanges and the question.
func BuildQuestionRequest(h domain.Hotel, history []domain.Exchange, question string, now time.Time) llm.CompletionRequest {
	if len(history) > maxPromptHistory {
		history = history[len(history)-maxPromptHistory:]
	}

	msgs := make([]llm.Message, 0, 2*len(history)+1)
	for _, ex := range history {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: ex.User},
			llm.Message{Role: llm.RoleAssistant, Content: ex.Assistant},
		)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})

	return llm.CompletionRequest{
		System:   BuildSystemPrompt(h, now),
		Messages: msgs,
	}
}
