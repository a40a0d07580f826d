package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/soyeahso/concierge/internal/llm"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/soyeahso/concierge/internal/metrics"
)

// FailoverClient wraps an LLM registry to try fallback providers on failure.
type FailoverClient struct {
	registry *llm.Registry
	refs     []string
	metrics  *metrics.Metrics
	log      *logging.Logger
}

// NewFailoverClient creates a client that tries refs in order, moving on
// only for retryable errors (401, 403, 429, 5xx, overload, timeouts).
func NewFailoverClient(registry *llm.Registry, refs []string, m *metrics.Metrics, log *logging.Logger) *FailoverClient {
	return &FailoverClient{
		registry: registry,
		refs:     refs,
		metrics:  m,
		log:      log.Sub("failover"),
	}
}

// Name reports the primary provider reference.
func (f *FailoverClient) Name() string {
	if len(f.refs) == 0 {
		return "failover"
	}
	return f.refs[0]
}

// Complete tries the primary provider, falling back on retryable errors.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(f.refs) == 0 {
		return nil, errors.New("no text-generation provider configured")
	}

	var lastErr error
	for _, ref := range f.refs {
		client, err := f.registry.Resolve(ref)
		if err != nil {
			f.log.Debug().Str("ref", ref).Err(err).Msg("no provider for reference, skipping")
			lastErr = err
			continue
		}

		req.Model = ref
		start := time.Now()
		resp, err := client.Complete(ctx, req)
		f.metrics.RecordLLM(client.Name(), err, time.Since(start))
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if isRetryable(err) {
			f.log.Warn().
				Str("ref", ref).
				Err(err).
				Msg("retryable error, trying next provider")
			continue
		}

		// Non-retryable error, don't try more providers
		return nil, err
	}

	return nil, lastErr
}

// isRetryable checks if the error suggests trying another provider.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 401, 403, 429, 500, 502, 503, 504, 529:
			return true
		case 0:
			// Transport failure, the provider never answered.
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout")
}
