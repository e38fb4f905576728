package event

import (
	"context"
	"strings"
	"time"
)

const (
	routingKeyLoanStatusPrefix     = "loan.status."
	routingKeyCustomerSubscribed   = "customer.subscribed"
	routingKeyCustomerUnsubscribed = "customer.unsubscribed"
)

type EventPublisher interface {
	PublishLoanStatusChanged(ctx context.Context, event LoanStatusChangedEvent) error
	PublishCustomerSubscriptionChanged(ctx context.Context, event CustomerSubscriptionEvent) error
}

type LoanStatusChangedEvent struct {
	LoanID          string    `json:"loanId"`
	CustomerNumber  string    `json:"customerNumber"`
	Amount          float64   `json:"amount"`
	OldStatus       string    `json:"oldStatus"`
	NewStatus       string    `json:"newStatus"`
	Exclusion       string    `json:"exclusion,omitempty"`
	ExclusionReason string    `json:"exclusionReason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e LoanStatusChangedEvent) RoutingKey() string {
	return routingKeyLoanStatusPrefix + strings.ToLower(e.NewStatus)
}

type CustomerSubscriptionEvent struct {
	CustomerNumber string    `json:"customerNumber"`
	Subscribed     bool      `json:"subscribed"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e CustomerSubscriptionEvent) RoutingKey() string {
	if e.Subscribed {
		return routingKeyCustomerSubscribed
	}
	return routingKeyCustomerUnsubscribed
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishLoanStatusChanged(context.Context, LoanStatusChangedEvent) error {
	return nil
}

func (NoopPublisher) PublishCustomerSubscriptionChanged(context.Context, CustomerSubscriptionEvent) error {
	return nil
}
