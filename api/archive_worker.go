package api

import (
	"context"
	"fmt"
	"log/slog"

	redisAdapter "vendue/adapters/redis"
	"vendue/auction"
)

// bidArchive 是 archive worker 寫入出價的目標
type bidArchive interface {
	SaveBid(ctx context.Context, bid auction.Bid) error
}

// newArchiveWorkers 建立把通知與出價從 stream 寫入資料庫的 consumer group
// 寫入失敗的消息移到死信 stream，出價以嚴格順序寫入，讓資料庫中的順序與帳本一致
func (impl *Server) newArchiveWorkers(keys redisAdapter.Keys, logger *slog.Logger) ([]redisAdapter.IGroupConsumer, error) {
	group := impl.config.Redis.ArchiveGroup
	if group == "" {
		group = "archive"
	}
	consumerName := impl.config.ID
	if consumerName == "" {
		consumerName = "vendue"
	}
	archive, ok := impl.inbox.(bidArchive)
	if !ok {
		return nil, fmt.Errorf("inbox %T cannot archive bids", impl.inbox)
	}

	notifications, err := redisAdapter.NewGroupConsumer(
		impl.redisClient,
		keys.Notifications(),
		group,
		consumerName,
		impl.inbox.Send,
		redisAdapter.WithGroupConsumerLogger[auction.Notification](logger.With(slog.String("worker", "NotificationArchive"))),
	)
	if err != nil {
		return nil, fmt.Errorf("fail to create notification group consumer, err=%w", err)
	}

	bids, err := redisAdapter.NewGroupConsumer(
		impl.redisClient,
		keys.Bids(),
		group,
		consumerName,
		archive.SaveBid,
		redisAdapter.WithGroupConsumerLogger[auction.Bid](logger.With(slog.String("worker", "BidArchive"))),
		redisAdapter.WithGroupConsumerStrictOrdering[auction.Bid](true),
		redisAdapter.WithGroupConsumerParseFunc(redisAdapter.BidFromMessage),
	)
	if err != nil {
		return nil, fmt.Errorf("fail to create bid group consumer, err=%w", err)
	}

	return []redisAdapter.IGroupConsumer{notifications, bids}, nil
}
