package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lending-engine/internal/infrastructure/logging"
)

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func opener(ch *mockChannel) channelOpener {
	return func() (amqpChannel, error) { return ch, nil }
}

func TestNewPublisher_DeclaresTopicExchange(t *testing.T) {
	ch := new(mockChannel)
	ch.On("ExchangeDeclare", "lending", amqp.ExchangeTopic, true, false, false, false, amqp.Table(nil)).Return(nil)
	ch.On("Close").Return(nil)

	p, err := newPublisher(opener(ch), "lending", logging.Discard())

	require.NoError(t, err)
	assert.NotNil(t, p)
	ch.AssertExpectations(t)
}

func TestNewPublisher_EmptyExchange(t *testing.T) {
	_, err := newPublisher(opener(new(mockChannel)), "", logging.Discard())
	assert.Error(t, err)
}

func TestNewPublisher_DeclareFails(t *testing.T) {
	ch := new(mockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("access refused"))
	ch.On("Close").Return(nil)

	_, err := newPublisher(opener(ch), "lending", logging.Discard())

	assert.ErrorContains(t, err, "access refused")
}

func TestPublishLoanStatusChanged(t *testing.T) {
	ch := new(mockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ch.On("Close").Return(nil)

	evt := LoanStatusChangedEvent{
		LoanID:         "LOAN01",
		CustomerNumber: "234774784",
		Amount:         5000,
		OldStatus:      "PROCESSING",
		NewStatus:      "APPROVED",
		Timestamp:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	ch.On("PublishWithContext", mock.Anything, "lending", "loan.status.approved", false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var got LoanStatusChangedEvent
			if err := json.Unmarshal(msg.Body, &got); err != nil {
				return false
			}
			return msg.ContentType == "application/json" &&
				msg.DeliveryMode == amqp.Persistent &&
				msg.AppId == publisherAppID &&
				got.LoanID == "LOAN01" && got.NewStatus == "APPROVED"
		})).Return(nil)

	p, err := newPublisher(opener(ch), "lending", logging.Discard())
	require.NoError(t, err)

	require.NoError(t, p.PublishLoanStatusChanged(context.Background(), evt))
	ch.AssertExpectations(t)
}

func TestPublishCustomerSubscriptionChanged_PublishFails(t *testing.T) {
	ch := new(mockChannel)
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ch.On("Close").Return(nil)
	ch.On("PublishWithContext", mock.Anything, "lending", "customer.unsubscribed", false, false, mock.Anything).
		Return(errors.New("channel closed"))

	p, err := newPublisher(opener(ch), "lending", logging.Discard())
	require.NoError(t, err)

	err = p.PublishCustomerSubscriptionChanged(context.Background(), CustomerSubscriptionEvent{CustomerNumber: "234774784"})
	assert.ErrorContains(t, err, "failed to publish message")
}

func TestRoutingKeys(t *testing.T) {
	assert.Equal(t, "loan.status.disbursed", LoanStatusChangedEvent{NewStatus: "DISBURSED"}.RoutingKey())
	assert.Equal(t, "customer.subscribed", CustomerSubscriptionEvent{Subscribed: true}.RoutingKey())
	assert.Equal(t, "customer.unsubscribed", CustomerSubscriptionEvent{}.RoutingKey())
}
