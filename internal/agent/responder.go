package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/llm"
	"github.com/soyeahso/concierge/internal/logging"
)

// HelpReply answers questions when no FAQ matches and no text-generation
// provider is configured.
const HelpReply = "I can help you book a room, reschedule a reservation, or answer questions about our amenities, prices, room types, location, check-in/out times and cancellation policy."

// Answer is the Responder's reply to a question.
type Answer struct {
	Text string
	// Source is "faq:<category>", "llm:<provider>" or "help".
	Source string
}

// Responder answers free-form questions: canned FAQ answers first, then
// the text-generation service.
type Responder struct {
	hotel       domain.Hotel
	faqs        []FAQ
	client      llm.Client
	maxTokens   int
	temperature *float64
	log         *logging.Logger
	now         func() time.Time
}

// ResponderConfig configures a Responder. A nil Client disables the
// text-generation fallback.
type ResponderConfig struct {
	Hotel       domain.Hotel
	FAQs        []FAQ
	Client      llm.Client
	MaxTokens   int
	Temperature *float64
}

// NewResponder creates a Responder; empty FAQs uses DefaultFAQs.
func NewResponder(cfg ResponderConfig, log *logging.Logger) *Responder {
	faqs := cfg.FAQs
	if faqs == nil {
		faqs = DefaultFAQs
	}
	return &Responder{
		hotel:       cfg.Hotel,
		faqs:        faqs,
		client:      cfg.Client,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		log:         log.Sub("responder"),
		now:         time.Now,
	}
}

// Answer replies to question. A text-generation failure is returned as an
// error; the caller decides what the guest sees.
func (r *Responder) Answer(ctx context.Context, history []domain.Exchange, question string) (Answer, error) {
	if faq, ok := MatchFAQ(r.faqs, question); ok {
		return Answer{Text: faq.Answer(r.hotel), Source: "faq:" + faq.Name}, nil
	}

	if r.client == nil || strings.TrimSpace(question) == "" {
		return Answer{Text: HelpReply, Source: "help"}, nil
	}

	req := BuildQuestionRequest(r.hotel, history, question, r.now())
	req.MaxTokens = r.maxTokens
	req.Temperature = r.temperature

	start := time.Now()
	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return Answer{}, fmt.Errorf("text generation: %w", err)
	}

	r.log.Debug().
		Str("provider", r.client.Name()).
		Str("model", resp.Model).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("question answered")

	return Answer{Text: resp.Content, Source: "llm:" + r.client.Name()}, nil
}
