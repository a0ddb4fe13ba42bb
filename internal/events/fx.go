package events

import (
	"context"

	"github.com/smallbiznis/makerhub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Publisher, error) {
	if cfg.RabbitMQ.URL == "" {
		log.Info("RABBITMQ_URL is empty, sale events are not published")
		return NoopPublisher{}, nil
	}
	pub, err := NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.DialTimeout, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pub.Connect(ctx); err != nil {
				log.Warn("rabbitmq not reachable at start, will retry on publish", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error { return pub.Close() },
	})
	return pub, nil
}
