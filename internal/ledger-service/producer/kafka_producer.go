package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/polybets/polybet-ledger/pkg/contracts/events"
)

// KafkaPublisher emite os eventos de ciclo de vida do betslip:
// betslip_created (consumido pelo executor) e betslip_settled.
type KafkaPublisher struct {
	CreatedWriter *kafka.Writer
	SettledWriter *kafka.Writer
}

func NewKafkaPublisher(created, settled *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{CreatedWriter: created, SettledWriter: settled}
}

func (p *KafkaPublisher) PublishBetSlipCreated(ctx context.Context, e events.BetSlipCreated) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.CreatedWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.BetSlipID), Value: b})
}

func (p *KafkaPublisher) PublishBetSlipSettled(ctx context.Context, e events.BetSlipSettled) error {
	e.Ts = time.Now()
	b, _ := json.Marshal(e)
	return p.SettledWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.BetSlipID), Value: b})
}
