package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"verity/internal/evidence/storage"
	"verity/pkg/platform/circuit"
	"verity/pkg/platform/sentinel"
)

const defaultEngineTimeout = 10 * time.Second

// HTTPMatcher calls the external face-comparison engine. Comparison is a
// bounded synchronous call; the breaker fails fast while the engine is
// down so uploads degrade instead of stalling.
type HTTPMatcher struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
}

func NewHTTPMatcher(baseURL string, opts ...func(*HTTPMatcher)) *HTTPMatcher {
	m := &HTTPMatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultEngineTimeout},
		breaker: circuit.New("biometric-engine"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) func(*HTTPMatcher) {
	return func(m *HTTPMatcher) {
		if client != nil {
			m.client = client
		}
	}
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(breaker *circuit.Breaker) func(*HTTPMatcher) {
	return func(m *HTTPMatcher) {
		if breaker != nil {
			m.breaker = breaker
		}
	}
}

type compareRequest struct {
	RefA string `json:"ref_a"`
	RefB string `json:"ref_b"`
}

type compareResponse struct {
	MatchConfidence    float64 `json:"match_confidence"`
	LivenessConfidence float64 `json:"liveness_confidence"`
}

func (m *HTTPMatcher) Compare(ctx context.Context, refA, refB storage.Ref) (*Match, error) {
	if !m.breaker.Allow() {
		return nil, fmt.Errorf("biometric engine: %w", sentinel.ErrUnavailable)
	}

	payload, err := json.Marshal(compareRequest{RefA: string(refA), RefB: string(refB)})
	if err != nil {
		return nil, fmt.Errorf("encode compare request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/compare", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build compare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		m.breaker.RecordFailure()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("biometric engine timeout: %w", sentinel.ErrUnavailable)
		}
		return nil, fmt.Errorf("biometric engine: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.breaker.RecordFailure()
		return nil, fmt.Errorf("biometric engine status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var body compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		m.breaker.RecordFailure()
		return nil, fmt.Errorf("decode compare response: %w", err)
	}

	m.breaker.RecordSuccess()
	return &Match{
		MatchConfidence:    body.MatchConfidence,
		LivenessConfidence: body.LivenessConfidence,
	}, nil
}
