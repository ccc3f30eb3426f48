package queue

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// QueueName is the durable queue ledger domain events are published to.
const QueueName = "ledger.events"

// Publisher pushes ledger domain events to RabbitMQ. It implements the
// ledger Emitter interface; publish failures are logged and swallowed so
// a broker outage never blocks or fails a ledger transition.
type Publisher struct {
	url string
	clk func() time.Time
	log zerolog.Logger
}

// NewPublisher returns a publisher for the given AMQP URL. The queue is
// declared lazily on each publish so the broker may come up after the
// service does.
func NewPublisher(url string, log zerolog.Logger) *Publisher {
	return &Publisher{
		url: url,
		clk: func() time.Time { return time.Now().UTC() },
		log: log.With().Str("component", "queue-publisher").Logger(),
	}
}

func (p *Publisher) EventCreated(id uint64, owner common.Address, name string) {
	p.publish(LedgerEvent{Kind: KindEventCreated, EventID: id, Owner: owner.Hex(), Name: name})
}

func (p *Publisher) TicketPurchased(id uint64, buyer common.Address, amount *big.Int, asset common.Address) {
	p.publish(LedgerEvent{Kind: KindTicketPurchased, EventID: id, Buyer: buyer.Hex(), Amount: amount.String(), Asset: asset.Hex()})
}

func (p *Publisher) RefundIssued(id uint64, buyer common.Address, amount *big.Int) {
	p.publish(LedgerEvent{Kind: KindRefundIssued, EventID: id, Buyer: buyer.Hex(), Amount: amount.String()})
}

func (p *Publisher) FundsReleased(id uint64, amount *big.Int) {
	p.publish(LedgerEvent{Kind: KindFundsReleased, EventID: id, Amount: amount.String()})
}

func (p *Publisher) EventCanceled(id uint64) {
	p.publish(LedgerEvent{Kind: KindEventCanceled, EventID: id})
}

// publish opens a short-lived connection, declares the durable queue and
// sends the event as a persistent JSON message. Any failure is logged.
func (p *Publisher) publish(ev LedgerEvent) {
	ev.EmittedAt = p.clk().Format(time.RFC3339)

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn().Err(err).Str("kind", ev.Kind).Msg("broker dial failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn().Err(err).Str("kind", ev.Kind).Msg("channel open failed")
		return
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		p.log.Warn().Err(err).Msg("queue declare failed")
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("kind", ev.Kind).Msg("marshal event failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = ch.PublishWithContext(ctx, "", QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.clk(),
		Body:         body,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("kind", ev.Kind).Msg("publish failed")
		return
	}
	p.log.Debug().Str("kind", ev.Kind).Uint64("event_id", ev.EventID).Msg("published")
}
