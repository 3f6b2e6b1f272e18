package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/polybets/polybet-ledger/internal/ledger-service/pubsub"
)

// StartRedisSubscriber escuta o canal Pub/Sub onde o ledger publica
// atualizações de betslip e repassa cada uma pro hub, que roteia por
// identidade.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub) {
	if channel == "" {
		channel = pubsub.ChannelBetSlipBroadcast
	}
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var upd pubsub.SlipUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
					log.Printf("ws subscriber unmarshal error: %v", err)
					continue
				}
				hub.Broadcast(upd)
			}
		}
	}()
}
