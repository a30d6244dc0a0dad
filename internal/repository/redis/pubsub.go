package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hoangtm/cinebook/internal/domain"
)

// PaymentsPubSub broadcasts terminal payment outcomes on a redis channel so
// other processes (notification senders, back-office sync) can react without
// polling the gateway.
type PaymentsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewPaymentsPubSub(rdb *redis.Client) *PaymentsPubSub {
	return &PaymentsPubSub{
		rdb:     rdb,
		channel: ChannelPayments(),
	}
}

type paymentSettledMsg struct {
	Type      string               `json:"type"`
	OrderCode int64                `json:"order_code"`
	UserID    int64                `json:"user_id"`
	Status    domain.PaymentStatus `json:"status"`
	TsUnix    int64                `json:"ts_unix"`
}

func (p *PaymentsPubSub) PublishSettled(ctx context.Context, sess *domain.PaymentSession) error {
	msg := paymentSettledMsg{
		Type:      "payment_settled",
		OrderCode: sess.OrderCode,
		UserID:    sess.UserID,
		Status:    sess.Status,
		TsUnix:    time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe delivers settled payments to handler until ctx is cancelled.
func (p *PaymentsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, orderCode int64, status domain.PaymentStatus)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg paymentSettledMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil && msg.OrderCode != 0 {
				handler(ctx, msg.OrderCode, msg.Status)
			}
		}
	}
}
