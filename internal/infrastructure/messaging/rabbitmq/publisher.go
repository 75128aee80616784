package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
)

const (
	DefaultExchange = "community.identity"

	RoutingKeyVerifyEmail        = "identity.email.verify.requested"
	RoutingKeyAccountsSuperseded = "identity.accounts.superseded"

	// Upper bound on waiting for the broker confirm.
	publishWait = 2 * time.Second
	// A Return for an unroutable message precedes its Ack; this covers delivery skew.
	returnGrace = 20 * time.Millisecond
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetConn()
	return nil
}

// ---- identity.EventPublisher ----

func (p *Publisher) PublishVerifyEmail(ctx context.Context, evt identity.VerifyEmailEvent) error {
	return p.publishJSON(ctx, RoutingKeyVerifyEmail, evt)
}

func (p *Publisher) PublishAccountsSuperseded(ctx context.Context, evt identity.AccountsSupersededEvent) error {
	return p.publishJSON(ctx, RoutingKeyAccountsSuperseded, evt)
}

// ---- internal ----

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return domain.ErrBrokerUnavailable(fmt.Errorf("rabbitmq dial: %w", err))
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return domain.ErrBrokerUnavailable(fmt.Errorf("rabbitmq channel: %w", err))
	}

	// Declare topic exchange (idempotent).
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return domain.ErrBrokerUnavailable(fmt.Errorf("exchange declare: %w", err))
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return domain.ErrBrokerUnavailable(fmt.Errorf("confirm mode: %w", err))
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) connected() bool {
	return p.ch != nil && (p.conn == nil || !p.conn.IsClosed())
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ErrInternal(fmt.Errorf("marshal payload: %w", err))
	}

	// Ensure there is a deadline to avoid blocking forever.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishWait)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	// Drain any stale confirm / return messages to avoid mixing results.
drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         routingKey,
			Body:         body,
		},
	); err != nil {
		p.resetConn()
		return domain.ErrBrokerUnavailable(fmt.Errorf("publish failed: %w", err))
	}

	select {
	case ret := <-p.returnCh:
		return unroutable(routingKey, ret)

	case conf := <-p.confirmCh:
		select {
		case ret := <-p.returnCh:
			return unroutable(routingKey, ret)
		case <-time.After(returnGrace):
		}
		if !conf.Ack {
			return domain.ErrBrokerUnavailable(fmt.Errorf("rabbitmq nack: key=%s deliveryTag=%d", routingKey, conf.DeliveryTag))
		}
		log.Debug().Str("routing_key", routingKey).Uint64("delivery_tag", conf.DeliveryTag).Msg("event published")
		return nil

	case <-ctx.Done():
		return domain.ErrBrokerUnavailable(fmt.Errorf("rabbitmq publish: key=%s: %w", routingKey, ctx.Err()))
	}
}

func unroutable(routingKey string, ret amqp.Return) error {
	// no queue is bound for this routing key
	return domain.ErrBrokerUnavailable(fmt.Errorf(
		"rabbitmq unroutable: key=%s code=%d text=%s",
		routingKey, ret.ReplyCode, ret.ReplyText,
	))
}

func (p *Publisher) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
