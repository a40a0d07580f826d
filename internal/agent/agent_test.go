package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- KeyedMutex ---

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("a")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, km.Len())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock("a")

	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
	unlockA() // second call is a no-op
	assert.Equal(t, 0, km.Len())
}

// --- Failover ---

func failoverWith(t *testing.T, clients map[string]llm.Client, refs ...string) *FailoverClient {
	t.Helper()
	reg := llm.NewRegistry(silentLog())
	for ref, c := range clients {
		reg.Register(ref, c)
	}
	return NewFailoverClient(reg, refs, nil, silentLog())
}

func replying(name, content string, calls *[]string) *llm.MockClient {
	return &llm.MockClient{
		ProviderName: name,
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			*calls = append(*calls, req.Model)
			return &llm.CompletionResponse{Content: content}, nil
		},
	}
}

func failing(name string, err error, calls *[]string) *llm.MockClient {
	return &llm.MockClient{
		ProviderName: name,
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			*calls = append(*calls, req.Model)
			return nil, err
		},
	}
}

func TestFailoverRetryableMovesOn(t *testing.T) {
	var calls []string
	f := failoverWith(t, map[string]llm.Client{
		"openai/a": failing("openai", &llm.ProviderError{Provider: "openai", Code: 429, Message: "rate limited"}, &calls),
		"ollama/b": replying("ollama", "from fallback", &calls),
	}, "openai/a", "ollama/b")

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Content)
	assert.Equal(t, []string{"openai/a", "ollama/b"}, calls)
	assert.Equal(t, "openai/a", f.Name())
}

func TestFailoverNonRetryableStops(t *testing.T) {
	var calls []string
	f := failoverWith(t, map[string]llm.Client{
		"openai/a": failing("openai", &llm.ProviderError{Provider: "openai", Code: 400, Message: "bad request"}, &calls),
		"ollama/b": replying("ollama", "unused", &calls),
	}, "openai/a", "ollama/b")

	_, err := f.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, []string{"openai/a"}, calls)
}

func TestFailoverAllFail(t *testing.T) {
	var calls []string
	last := &llm.ProviderError{Provider: "ollama", Code: 503, Message: "loading"}
	f := failoverWith(t, map[string]llm.Client{
		"openai/a": failing("openai", &llm.ProviderError{Provider: "openai", Code: 500}, &calls),
		"ollama/b": failing("ollama", last, &calls),
	}, "openai/a", "ollama/b")

	_, err := f.Complete(context.Background(), llm.CompletionRequest{})
	assert.Same(t, last, err)
}

func TestFailoverNoProviders(t *testing.T) {
	f := failoverWith(t, nil)
	_, err := f.Complete(context.Background(), llm.CompletionRequest{})
	assert.Error(t, err)
	assert.Equal(t, "failover", f.Name())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{&llm.ProviderError{Code: 401}, true},
		{&llm.ProviderError{Code: 503}, true},
		{&llm.ProviderError{Code: 400}, false},
		{&llm.ProviderError{Message: "connection refused"}, true},
		{errors.New("server overloaded"), true},
		{errors.New("Rate limit exceeded"), true},
		{errors.New("invalid prompt"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryable(tt.err), "%v", tt.err)
	}
}

// --- FAQ and prompts ---

func TestMatchFAQ(t *testing.T) {
	h := domain.DefaultHotel()

	tests := []struct {
		question string
		category string
		answer   string
	}{
		{"What are the hotel amenities?", "amenities", "Sunset Resort offers pool, spa, restaurant and free Wi-Fi."},
		{"How much does it cost?", "pricing", "Our prices per stay: standard 5000, deluxe 8000 and suite 12000."},
		{"Tell me about the suite", "room types", "We offer standard (up to 2 guests), deluxe (up to 4 guests) and suite (up to 6 guests)."},
		{"Where are you?", "location", "Sunset Resort is located in Goa, India."},
		{"What is the checkout time?", "check-in/out times", "Check-in is at 2:00 PM and check-out is at 11:00 AM."},
		{"Do you give refunds?", "cancellation policy", "Cancellation policy: " + h.CancellationPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			faq, ok := MatchFAQ(DefaultFAQs, tt.question)
			require.True(t, ok)
			assert.Equal(t, tt.category, faq.Name)
			assert.Equal(t, tt.answer, faq.Answer(h))
		})
	}

	_, ok := MatchFAQ(DefaultFAQs, "Do you allow pets?")
	assert.False(t, ok)
}

func TestFAQOrderAmenitiesFirst(t *testing.T) {
	faq, ok := MatchFAQ(DefaultFAQs, "what does the spa cost")
	require.True(t, ok)
	assert.Equal(t, "amenities", faq.Name)
}

func TestBuildSystemPrompt(t *testing.T) {
	p := BuildSystemPrompt(domain.DefaultHotel(), time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"Sunset Resort",
		"Goa, India",
		"Current date: 2025-07-01",
		"pool, spa, restaurant, free Wi-Fi",
		"- standard: 5000 per stay, up to 2 guests",
		"- suite: 12000 per stay, up to 6 guests",
	} {
		assert.Contains(t, p, want)
	}
	assert.Less(t, strings.Index(p, "- standard"), strings.Index(p, "- deluxe"))
}

func TestBuildQuestionRequestTrimsHistory(t *testing.T) {
	history := make([]domain.Exchange, 5)
	for i := range history {
		history[i] = domain.Exchange{User: string(rune('a' + i)), Assistant: "ok"}
	}

	req := BuildQuestionRequest(domain.DefaultHotel(), history, "pets?", time.Now())
	require.Len(t, req.Messages, 2*maxPromptHistory+1)
	assert.Equal(t, "c", req.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, "pets?", req.Messages[len(req.Messages)-1].Content)
}

func TestResponderPassesLimits(t *testing.T) {
	temp := 0.3
	var got llm.CompletionRequest
	r := NewResponder(ResponderConfig{
		Hotel:       domain.DefaultHotel(),
		MaxTokens:   256,
		Temperature: &temp,
		Client: &llm.MockClient{ProviderName: "mock", CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			got = req
			return &llm.CompletionResponse{Content: "yes"}, nil
		}},
	}, silentLog())

	ans, err := r.Answer(context.Background(), nil, "Do you allow pets?")
	require.NoError(t, err)
	assert.Equal(t, "llm:mock", ans.Source)
	assert.Equal(t, 256, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.3, *got.Temperature)
}
