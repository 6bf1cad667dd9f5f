// Package external holds the pieces shared by outbound HTTP clients.
package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// MaxBodyBytes bounds how much of a response body is read.
const MaxBodyBytes = 64 << 20

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" validate:"min=1"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout" validate:"min=0"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" validate:"min=1"`
}

// DefaultBreakerConfig returns a default configuration for circuit breaker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// NewBreaker builds a circuit breaker that trips on the failure ratio and
// does not count caller cancellations or bad input as failures.
func NewBreaker(name string, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch {
			case errors.Is(err, context.Canceled),
				pkgerrors.IsType(err, pkgerrors.ErrorTypeCanceled),
				pkgerrors.IsValidation(err),
				pkgerrors.IsNotFound(err):
				return true
			}
			return false
		},
	})
}

// Execute runs fn through cb. An open breaker surfaces as a transport error.
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, pkgerrors.NewTransportError(
				fmt.Sprintf("%s temporarily unavailable", cb.Name()), err).
				WithCode("CIRCUIT_OPEN")
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// Do sends req and classifies failures: a finished context becomes a
// timeout or cancellation, anything else a transport error.
func Do(ctx context.Context, client *http.Client, req *http.Request, operation string) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := pkgerrors.FromContext(ctx, operation); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pkgerrors.NewTransportError(operation+" failed", err)
	}
	return resp, nil
}

// ReadBody drains and closes resp.Body, up to MaxBodyBytes.
func ReadBody(ctx context.Context, resp *http.Response, operation string) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		if ctxErr := pkgerrors.FromContext(ctx, operation); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pkgerrors.NewTransportError(operation+": reading response failed", err)
	}
	return body, nil
}

// StatusError reports a non-success HTTP status as a transport error.
func StatusError(operation string, status int, body []byte) *pkgerrors.AppError {
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	return pkgerrors.NewTransportError(
		fmt.Sprintf("%s returned HTTP %d", operation, status), nil).
		WithDetail("status", status).
		WithDetail("body", snippet)
}

// IsSuccess reports a 2xx status.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
