package kafka

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedocs/internal/platform/config"
)

func TestNewProducerRequiresBrokersAndTopic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewProducer(config.KafkaConfig{Topic: "casedocs.jobs"}, logger)
	assert.Error(t, err)

	_, err = NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, logger)
	assert.Error(t, err)
}

func TestNewProducerDoesNotDial(t *testing.T) {
	p, err := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "casedocs.jobs"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	p.client.Close()
}
