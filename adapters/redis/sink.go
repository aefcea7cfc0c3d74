package redis

import (
	"context"
	"errors"
	"fmt"

	"vendue/auction"
)

// NotificationSink 將通知寫入 Redis stream，由其他節點的 Consumer/GroupConsumer 取用
type NotificationSink struct {
	producer IProducer[auction.Notification]
}

func NewNotificationSink(producer IProducer[auction.Notification]) (*NotificationSink, error) {
	if producer == nil {
		return nil, errors.New("producer cannot be nil")
	}
	return &NotificationSink{producer: producer}, nil
}

// Send 將通知放入 producer 的緩衝區，不等待寫入 Redis
func (s *NotificationSink) Send(ctx context.Context, notification auction.Notification) error {
	const op = "redis.NotificationSink.Send"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.producer.Publish(notification); err != nil {
		return fmt.Errorf("%s: failed to publish notification %s: %w", op, notification.ID, err)
	}
	return nil
}
