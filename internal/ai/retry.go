package ai

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// retryPolicy is exponential backoff with jitter, capped at maxDelay.
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newRetryPolicy(attempts int, base, max time.Duration) retryPolicy {
	if attempts <= 0 {
		attempts = 1
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 4 * time.Second
	}
	return retryPolicy{attempts: attempts, baseDelay: base, maxDelay: max}
}

// run calls fn until it succeeds, returns a non-retryable error or attempts
// run out. A RateLimitError's RetryAfter overrides the computed delay.
func (p retryPolicy) run(ctx context.Context, fn func() error) error {
	backoff := p.baseDelay
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(); err == nil || !retryable(err) || attempt == p.attempts {
			return err
		}
		wait := withJitter(backoff)
		if rl, ok := err.(*RateLimitError); ok && rl.RetryAfter > 0 {
			wait = rl.RetryAfter
		} else if wait > p.maxDelay {
			wait = p.maxDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return err
}

// withJitter spreads d by +/-20%.
func withJitter(d time.Duration) time.Duration {
	f := 0.8 + rand.Float64()*0.4
	if out := time.Duration(float64(d) * f); out > 0 {
		return out
	}
	return d
}

// retryAfter reads Retry-After as seconds or an HTTP date.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if s, err := strconv.Atoi(v); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// decodeAPIError builds a classified error from a failed response. Both
// {"error": {"message", "code"}} and flat {"error"|"message", "code"} bodies are understood.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: requestID(resp.Header)}
	if nested, ok := raw["error"].(map[string]any); ok {
		apiErr.Message, _ = nested["message"].(string)
		apiErr.Code, _ = nested["code"].(string)
	} else {
		if msg, ok := raw["error"].(string); ok {
			apiErr.Message = msg
		} else if msg, ok := raw["message"].(string); ok {
			apiErr.Message = msg
		}
		apiErr.Code, _ = raw["code"].(string)
	}
	return classify(apiErr, resp.Header)
}

func requestID(h http.Header) string {
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"} {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}
