package events

import (
	"fmt"

	"courtbook/pkg/config"
	"courtbook/pkg/kafka"
	kafka_config "courtbook/pkg/kafka/config"
	kafka_middleware "courtbook/pkg/kafka/middleware"
)

// New builds the publisher selected by EVENTS_BROKER.
func New(cfg *config.Config, kafkaCfg *kafka_config.Config) (Publisher, error) {
	switch cfg.EventsBroker {
	case config.EventsBrokerKafka:
		if kafkaCfg == nil {
			return nil, fmt.Errorf("kafka config is required for the kafka events broker")
		}
		producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.EventsTopic, kafkaCfg.EventsDLQTopic, cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("create events producer: %w", err)
		}
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		cfg.Log.Info("Publishing domain events to kafka", "topic", kafkaCfg.EventsTopic)
		return NewKafkaPublisher(producer), nil

	case config.EventsBrokerRabbitMQ:
		publisher, err := NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, err
		}
		cfg.Log.Info("Publishing domain events to rabbitmq", "exchange", cfg.RabbitMQExchange)
		return publisher, nil

	case config.EventsBrokerNone:
		cfg.Log.Warn("No events broker configured, domain events are only logged")
		return NewLogPublisher(cfg.Log), nil

	default:
		return nil, fmt.Errorf("unknown events broker %q", cfg.EventsBroker)
	}
}
