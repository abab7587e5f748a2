//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
)

// KafkaContainer wraps a Redpanda instance speaking the Kafka protocol.
type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   []string
}

// NewKafkaContainer starts Redpanda and tears it down with the test.
func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "redpandadata/redpanda:v24.1.7")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		t.Fatalf("failed to get redpanda seed broker: %v", err)
	}

	return &KafkaContainer{Container: container, Brokers: []string{broker}}
}
