package rabbitmq

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront-bot/internal/config"
)

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, mandatory, immediate, msg).Error(0)
}

func TestPublishMessage(t *testing.T) {
	type TestMsg struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	t.Run("success", func(t *testing.T) {
		p := new(MockPublisher)
		p.On("Publish", "notifications", "outbound", false, false, mock.MatchedBy(func(msg amqp.Publishing) bool {
			var got TestMsg
			if err := json.Unmarshal(msg.Body, &got); err != nil {
				return false
			}
			return got.ID == 1 &&
				msg.ContentType == "application/json" &&
				msg.DeliveryMode == amqp.Persistent &&
				msg.MessageId == "abc"
		})).Return(nil)

		err := PublishMessage(p, "notifications", "outbound", "abc", TestMsg{ID: 1, Name: "Hello"})
		require.NoError(t, err)
		p.AssertExpectations(t)
	})

	t.Run("marshal error", func(t *testing.T) {
		badMsg := struct {
			Ch chan int `json:"ch"`
		}{Ch: make(chan int)}

		err := PublishMessage(new(MockPublisher), "", "q", "", badMsg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
	})

	t.Run("broker error", func(t *testing.T) {
		p := new(MockPublisher)
		p.On("Publish", mock.Anything, mock.Anything, false, false, mock.Anything).Return(errors.New("channel closed"))

		err := PublishMessage(p, "notifications", "outbound", "", map[string]any{"ok": true})
		assert.Error(t, err)
	})
}

func TestQueues(t *testing.T) {
	queues := Queues(config.RabbitMQ{
		EventsQueue:        "storefront.events",
		OutboundQueue:      "notifications.outbound",
		OutboundRoutingKey: "outbound",
	})

	require.Len(t, queues, 2)
	assert.Equal(t, QueueConfig{QueueName: "storefront.events", RoutingKey: EventsRoutingKey}, queues[0])
	assert.Equal(t, QueueConfig{QueueName: "notifications.outbound", RoutingKey: "outbound"}, queues[1])

	seen := map[string]bool{}
	for _, q := range queues {
		assert.Falsef(t, seen[q.QueueName], "duplicate queue name: %s", q.QueueName)
		seen[q.QueueName] = true
	}
}
