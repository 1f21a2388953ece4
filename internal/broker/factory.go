package broker

import (
	"taskbridge/internal/config"
	"taskbridge/internal/logger"
)

func NewPublisher(cfg config.BrokerConfig, log logger.Logger) Publisher {
	return NewRabbitPublisher(cfg, log)
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) Consumer {
	return NewRabbitConsumer(cfg, log)
}
