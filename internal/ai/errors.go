package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuthError is a 401/403: the token was missing, wrong or lacks access.
type AuthError struct{ *APIError }

func (e *AuthError) Error() string { return "token rejected: " + e.APIError.Error() }
func (e *AuthError) Unwrap() error { return e.APIError }

// RateLimitError is a 429. RetryAfter is set when the server sent the header.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %s", e.RetryAfter.Round(time.Second), e.APIError.Error())
	}
	return "rate limited: " + e.APIError.Error()
}
func (e *RateLimitError) Unwrap() error { return e.APIError }

// ModelNotFoundError means the endpoint does not serve the requested model.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string { return "unknown model: " + e.APIError.Error() }
func (e *ModelNotFoundError) Unwrap() error { return e.APIError }

// BadRequestError is any other 4xx, usually a payload the endpoint refused.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return "request refused: " + e.APIError.Error() }
func (e *BadRequestError) Unwrap() error { return e.APIError }

// QuotaExceededError is a 402 or a quota/billing message on another status.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string { return "quota exhausted: " + e.APIError.Error() }
func (e *QuotaExceededError) Unwrap() error { return e.APIError }

// ServerError is a 5xx that survived the retries.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return "endpoint failure: " + e.APIError.Error() }
func (e *ServerError) Unwrap() error { return e.APIError }

// UnreachableError means no HTTP exchange happened at all.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("cannot reach %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("cannot reach endpoint: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Hint suggests what the user can change after a failed request. It returns
// "" when there is nothing useful to add.
func Hint(err error) string {
	var (
		auth  *AuthError
		rate  *RateLimitError
		model *ModelNotFoundError
		quota *QuotaExceededError
		srv   *ServerError
		down  *UnreachableError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &auth):
		return "check the token in the variable named by token_env"
	case errors.As(err, &rate):
		return "wait a moment or raise --retry-max"
	case errors.As(err, &model):
		return "pick another --model; `autolysis models show` lists known ones"
	case errors.As(err, &quota):
		return "the token has no quota left"
	case errors.As(err, &srv):
		return "the endpoint is failing; try again later"
	case errors.As(err, &down):
		return "is the endpoint (or `ollama serve`) running?"
	case errors.Is(err, context.DeadlineExceeded):
		return "raise request_timeout_sec or --http-timeout"
	}
	return ""
}
