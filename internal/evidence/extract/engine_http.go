package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"verity/pkg/platform/circuit"
)

const defaultEngineTimeout = 10 * time.Second

// HTTPEngine calls the external OCR service over HTTP and runs the parser
// registry on the text it returns. A circuit breaker stops the engine from
// being hammered while it is down; open-circuit calls fail fast as
// retryable outages, with periodic trial calls so a recovered engine closes
// the circuit again.
type HTTPEngine struct {
	baseURL  string
	client   *http.Client
	registry *Registry
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// HTTPEngineOption configures an HTTPEngine.
type HTTPEngineOption func(*HTTPEngine)

func WithHTTPClient(client *http.Client) HTTPEngineOption {
	return func(e *HTTPEngine) {
		if client != nil {
			e.client = client
		}
	}
}

func WithBreaker(breaker *circuit.Breaker) HTTPEngineOption {
	return func(e *HTTPEngine) {
		if breaker != nil {
			e.breaker = breaker
		}
	}
}

func WithLogger(logger *slog.Logger) HTTPEngineOption {
	return func(e *HTTPEngine) {
		e.logger = logger
	}
}

// NewHTTPEngine constructs the OCR engine client.
func NewHTTPEngine(baseURL string, registry *Registry, opts ...HTTPEngineOption) *HTTPEngine {
	e := &HTTPEngine{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: defaultEngineTimeout},
		registry: registry,
		breaker:  circuit.New("ocr-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// engineResponse is the wire shape the OCR service returns.
type engineResponse struct {
	RawText    string  `json:"raw_text"`
	Confidence float64 `json:"confidence"`
}

func (e *HTTPEngine) Extract(ctx context.Context, data []byte, docType DocumentType) (*Result, error) {
	if !e.breaker.Allow() {
		return nil, NewEngineError(ErrorEngineOutage, "circuit open", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract?type="+string(docType), bytes.NewReader(data))
	if err != nil {
		return nil, NewEngineError(ErrorInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		_, change := e.breaker.RecordFailure()
		e.logBreakerChange(ctx, change)
		category := ErrorEngineOutage
		if errors.Is(err, context.DeadlineExceeded) {
			category = ErrorTimeout
		}
		return nil, NewEngineError(category, "engine call failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		e.breaker.RecordFailure()
		return nil, NewEngineError(ErrorRateLimited, "engine rate limited", nil)
	case resp.StatusCode >= 500:
		_, change := e.breaker.RecordFailure()
		e.logBreakerChange(ctx, change)
		return nil, NewEngineError(ErrorEngineOutage, resp.Status, nil)
	default:
		// The engine rejected the bytes. Per contract this is not an
		// error: unreadable evidence extracts to nothing.
		e.breaker.RecordSuccess()
		return &Result{Confidence: 0, ExtractedAt: time.Now()}, nil
	}

	var body engineResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		e.breaker.RecordFailure()
		return nil, NewEngineError(ErrorBadData, "decode engine response", err)
	}

	_, change := e.breaker.RecordSuccess()
	e.logBreakerChange(ctx, change)

	return &Result{
		Fields:      e.registry.Parse(docType, body.RawText),
		Confidence:  body.Confidence,
		RawText:     body.RawText,
		ExtractedAt: time.Now(),
	}, nil
}

func (e *HTTPEngine) logBreakerChange(ctx context.Context, change circuit.StateChange) {
	if e.logger == nil {
		return
	}
	if change.Opened {
		e.logger.ErrorContext(ctx, "ocr engine circuit opened")
	}
	if change.Closed {
		e.logger.InfoContext(ctx, "ocr engine circuit closed")
	}
}
