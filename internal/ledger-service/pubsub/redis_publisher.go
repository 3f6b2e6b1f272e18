package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const ChannelBetSlipBroadcast = "betslip_updates_broadcast"

// RedisBroadcaster publica atualizações de betslip no canal Pub/Sub
// consumido pelo portfolio-stream-service.
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = ChannelBetSlipBroadcast
	}
	return &RedisBroadcaster{r: r, channel: channel}
}

// SlipUpdate é o payload padrão do stream de portfólio. Identity fica
// no envelope só para roteamento no hub WS; nunca vai pro cliente de
// outra identidade.
type SlipUpdate struct {
	Identity        string `json:"identity"`
	BetSlipID       string `json:"betslip_id"`
	Status          string `json:"status"`
	CreditedAmount  int64  `json:"credited_amount,omitempty"`
	FinalCollateral int64  `json:"final_collateral,omitempty"`
	Balance         int64  `json:"balance"`
}

func (b *RedisBroadcaster) BroadcastSlipUpdate(ctx context.Context, upd SlipUpdate) error {
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
