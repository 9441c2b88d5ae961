package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/meeting-checkin/internal/application"
)

const (
	// DefaultQueue receives status events when no queue is configured.
	DefaultQueue = "meeting.status"
	// DefaultDialTimeout bounds the TCP connect to the broker.
	DefaultDialTimeout = 5 * time.Second
	// DefaultRedialCooldown is how long publishes fail fast after a failed dial.
	DefaultRedialCooldown = 30 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher waits out its redial cooldown.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel to the broker.
type Dialer func(url string) (Channel, func() error, error)

// DialAMQP connects with DefaultDialTimeout and opens one channel. The
// returned closer closes the connection.
func DialAMQP(url string) (Channel, func() error, error) {
	return NewDialer(DefaultDialTimeout)(url)
}

// NewDialer returns a Dialer whose connect attempt gives up after timeout.
func NewDialer(timeout time.Duration) Dialer {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return func(url string) (Channel, func() error, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(timeout)})
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
		}
		return ch, conn.Close, nil
	}
}

// AMQPConfig configures AMQPPublisher.
type AMQPConfig struct {
	URL   string
	Queue string
	// Dial defaults to NewDialer(DialTimeout).
	Dial        Dialer
	DialTimeout time.Duration
	// RedialCooldown defaults to DefaultRedialCooldown.
	RedialCooldown time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

// AMQPPublisher publishes status events as persistent JSON messages on a
// durable queue. The channel is opened lazily and reopened after a failure.
// After a failed dial, publishes return ErrBrokerUnavailable until the
// cooldown passes.
type AMQPPublisher struct {
	cfg AMQPConfig

	mu          sync.Mutex
	channel     Channel
	closer      func() error
	redialAfter time.Time
}

// NewAMQPPublisher applies defaults to cfg. No connection is made until the first publish.
func NewAMQPPublisher(cfg AMQPConfig) *AMQPPublisher {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Dial == nil {
		cfg.Dial = NewDialer(cfg.DialTimeout)
	}
	if cfg.RedialCooldown <= 0 {
		cfg.RedialCooldown = DefaultRedialCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AMQPPublisher{cfg: cfg}
}

// NotifyStatusChanged implements application.Notifier.
func (p *AMQPPublisher) NotifyStatusChanged(ctx context.Context, note application.StatusNotification) error {
	body, err := json.Marshal(NewStatusEvent(note))
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.ensureChannel()
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         EventStatusChanged,
		MessageId:    note.MeetingID + ":" + note.Participant.ID + ":" + string(note.Status),
		Timestamp:    p.cfg.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) ensureChannel() (Channel, error) {
	if p.channel != nil {
		return p.channel, nil
	}
	if now := p.cfg.Now(); now.Before(p.redialAfter) {
		return nil, fmt.Errorf("%w until %s", ErrBrokerUnavailable, p.redialAfter.Format(time.RFC3339))
	}
	ch, closer, err := p.cfg.Dial(p.cfg.URL)
	if err != nil {
		p.redialAfter = p.cfg.Now().Add(p.cfg.RedialCooldown)
		return nil, err
	}
	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if closer != nil {
			_ = closer()
		}
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.channel = ch
	p.closer = closer
	return ch, nil
}

func (p *AMQPPublisher) resetLocked() error {
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.closer != nil {
		errs = append(errs, p.closer())
	}
	p.channel = nil
	p.closer = nil
	return errors.Join(errs...)
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.resetLocked(); err != nil {
		p.cfg.Logger.Warn("rabbitmq close failed", "error", err)
		return err
	}
	return nil
}

var _ application.Notifier = (*AMQPPublisher)(nil)
