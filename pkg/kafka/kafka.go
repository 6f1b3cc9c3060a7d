package kafka

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/illegalcall/palmistry/internal/config"
)

const (
	maxRetries = 10
	retryDelay = 3 * time.Second
)

func waitForKafka(brokers []string) error {
	for i := 0; i < maxRetries; i++ {
		config := sarama.NewConfig()
		config.Net.DialTimeout = 1 * time.Second
		client, err := sarama.NewClient(brokers, config)
		if err == nil {
			client.Close()
			return nil
		}
		slog.Info("Waiting for Kafka to be ready...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	return fmt.Errorf("kafka not available after %d attempts", maxRetries)
}

func NewProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	brokers := []string{cfg.Broker}
	if err := waitForKafka(brokers); err != nil {
		return nil, err
	}

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = cfg.RetryMax
	sc.Producer.Retry.Backoff = cfg.RetryBackoff

	return sarama.NewSyncProducer(brokers, sc)
}

func NewConsumer(cfg config.KafkaConfig) (sarama.ConsumerGroup, error) {
	brokers := []string{cfg.Broker}
	if err := waitForKafka(brokers); err != nil {
		return nil, err
	}

	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	return sarama.NewConsumerGroup(brokers, cfg.Group, sc)
}
