package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests. Replies are consumed in order;
// once they run out CompleteFunc (or a canned answer) takes over. Every
// request is recorded.
type MockClient struct {
	ProviderName string
	Replies      []string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	mu       sync.Mutex
	requests []CompletionRequest
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var scripted *string
	if len(m.Replies) > 0 {
		scripted = &m.Replies[0]
		m.Replies = m.Replies[1:]
	}
	m.mu.Unlock()

	if scripted != nil {
		return &CompletionResponse{Content: *scripted, Model: req.Model}, nil
	}
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Content: "We'd be happy to help with that.", Model: req.Model}, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}
