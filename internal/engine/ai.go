package engine

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appconfig "github.com/turtacn/StoryLink-Intelligence/internal/config"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/StoryLink-Intelligence/pkg/errors"
	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// ---------------------------------------------------------------------------
// AI adapter
// ---------------------------------------------------------------------------

// ProposeRequest is the input handed to an AI adapter for entity proposal.
type ProposeRequest struct {
	Text         string             `json:"text"`
	KnownNames   []string           `json:"known_names,omitempty"`
	AllowedTypes []story.EntityType `json:"allowed_types,omitempty"`
}

// AIAdapter asks an external model to propose entities for a text.  The
// returned bytes are the raw, untrusted response body; the engine validates
// shape before using anything in it.
type AIAdapter interface {
	ProposeEntities(ctx context.Context, req ProposeRequest) ([]byte, error)
}

// aiCandidate is the wire shape of a single proposed entity.
type aiCandidate struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// aiResponse is the wire shape of a ProposeEntities response.
type aiResponse struct {
	Entities []aiCandidate `json:"entities"`
}

// adapterResult tags an adapter response as usable or rejected.  A rejected
// response degrades the run; it never fails it.
type adapterResult struct {
	Valid       bool
	Reason      string
	Suggestions []NewEntitySuggestion
}

// validateAdapterResponse parses raw adapter output.  A response
// that is not JSON or lacks the entities array is tagged malformed.
// Individual candidates with empty or one-character names or unknown types
// are skipped; confidence is clamped into [0, 1].
func validateAdapterResponse(raw []byte) adapterResult {
	if len(raw) == 0 {
		return adapterResult{Reason: "empty response body"}
	}
	var resp aiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return adapterResult{Reason: fmt.Sprintf("response is not valid JSON: %v", err)}
	}
	if resp.Entities == nil {
		return adapterResult{Reason: "response has no entities array"}
	}

	suggestions := make([]NewEntitySuggestion, 0, len(resp.Entities))
	for _, c := range resp.Entities {
		name := strings.TrimSpace(c.Name)
		if len([]rune(name)) < minMatchLength {
			continue
		}
		entityType, ok := story.ParseEntityType(c.Type)
		if !ok {
			continue
		}
		confidence := c.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		suggestions = append(suggestions, NewEntitySuggestion{
			Text:          name,
			NormalizedKey: strings.ToLower(name),
			Type:          entityType,
			Confidence:    confidence,
			Frequency:     1,
			Source:        SuggestionSourceAI,
			Reason:        strings.TrimSpace(c.Reason),
		})
	}
	return adapterResult{Valid: true, Suggestions: suggestions}
}

// ---------------------------------------------------------------------------
// HTTP adapter
// ---------------------------------------------------------------------------

// httpDoer lets tests stub the HTTP client.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPAdapter talks to an external entity-proposal service over HTTP.
type HTTPAdapter struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	backoff    time.Duration
	client     httpDoer
	logger     logging.Logger
}

// NewHTTPAdapter builds an adapter from the platform AI config.
func NewHTTPAdapter(cfg appconfig.AIConfig, logger logging.Logger) (*HTTPAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "ai adapter requires a base url")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAdapter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		backoff:    500 * time.Millisecond,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.Named("ai_adapter"),
	}, nil
}

// ProposeEntities posts the request and returns the raw response body.
// Transport failures and 5xx statuses are retried with a short backoff;
// 4xx statuses are terminal.
func (a *HTTPAdapter) ProposeEntities(ctx context.Context, req ProposeRequest) ([]byte, error) {
	body, err := json.Marshal(struct {
		ProposeRequest
		Model string `json:"model,omitempty"`
	}{ProposeRequest: req, Model: a.model})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode propose request")
	}

	url := a.baseURL + "/v1/propose-entities"
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), errors.ErrCodeAdapterTimeout, "propose entities cancelled")
			case <-time.After(time.Duration(attempt) * a.backoff):
			}
		}

		raw, retryable, err := a.attempt(ctx, url, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		a.logger.Warn("ai adapter attempt failed",
			logging.Int("attempt", attempt+1),
			logging.Err(err),
		)
	}
	return nil, lastErr
}

func (a *HTTPAdapter) attempt(ctx context.Context, url string, body []byte) (raw []byte, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeInternal, "build propose request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, false, errors.Wrap(err, errors.ErrCodeAdapterTimeout, "propose entities timed out")
		}
		return nil, true, errors.Wrap(err, errors.ErrCodeAdapterUnavailable, "propose entities request failed")
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, errors.Wrap(err, errors.ErrCodeAdapterUnavailable, "read propose response")
	}
	switch {
	case resp.StatusCode >= 500:
		return nil, true, errors.Newf(errors.ErrCodeAdapterUnavailable, "propose entities returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, errors.Newf(errors.ErrCodeAdapterUnavailable, "propose entities rejected with status %d", resp.StatusCode)
	}
	return raw, false, nil
}
