// Package scoring talks to the external credit-scoring gateway: client
// registration, score query initiation and score polling. It also owns the
// process-wide client credential cache.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"lending-engine/internal/pkg/apperrors"
)

// NoExclusion is the exclusion code the gateway uses for customers that are
// eligible for credit.
const NoExclusion = "No Exclusion"

// exclusionPending is what some gateway versions return instead of a 404
// while the score is still being computed.
const exclusionPending = "pending"

// ClientInfo is both the registration request and response body.
type ClientInfo struct {
	ID       int64  `json:"id,omitempty"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token,omitempty"`
}

type ScoreResult struct {
	ID              int64   `json:"id"`
	CustomerNumber  string  `json:"customerNumber"`
	Score           int     `json:"score"`
	LimitAmount     float64 `json:"limitAmount"`
	Exclusion       string  `json:"exclusion"`
	ExclusionReason string  `json:"exclusionReason"`
}

// Excluded reports whether the gateway barred the customer from credit.
func (r ScoreResult) Excluded() bool {
	return r.Exclusion != NoExclusion
}

// ScoreOutcome is the result of a single poll: either a definite score or a
// pending marker. Hard failures are returned as errors instead.
type ScoreOutcome struct {
	Result  *ScoreResult
	Pending bool
}

func Ready(r ScoreResult) ScoreOutcome {
	return ScoreOutcome{Result: &r}
}

func Pending() ScoreOutcome {
	return ScoreOutcome{Pending: true}
}

// Client is the scoring gateway contract.
type Client interface {
	RegisterClient(ctx context.Context, info ClientInfo) (string, error)
	InitiateScoreQuery(ctx context.Context, customerNumber, clientToken string) (string, error)
	QueryScore(ctx context.Context, queryToken, clientToken string) (ScoreOutcome, error)
}

// GatewayError describes a failed gateway call. It unwraps to
// apperrors.ErrGatewayUnavailable or apperrors.ErrInvalidResponse and to the
// underlying cause, if any.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
	Kind       error
	Cause      error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failed with status %d: %s", e.Kind, e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Kind, e.Op, msg)
}

func (e *GatewayError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func unavailable(op string, cause error) error {
	return &GatewayError{Op: op, Kind: apperrors.ErrGatewayUnavailable, Cause: cause}
}

func invalidResponse(op string, status int, msg string, cause error) error {
	return &GatewayError{Op: op, StatusCode: status, Message: msg, Kind: apperrors.ErrInvalidResponse, Cause: cause}
}

// IsUnavailable reports whether err means the gateway could not be reached or
// answered with a server-side failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, apperrors.ErrGatewayUnavailable)
}
