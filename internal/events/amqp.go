package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig configures an AMQP event source.
type AMQPConfig struct {
	URL         string
	Queue       string
	ConsumerTag string

	// Prefetch bounds unacknowledged deliveries. Deliveries stay unacked
	// until Commit, so a nonzero Prefetch also bounds the events of one
	// task. Zero means unlimited.
	Prefetch int

	// Declare declares Queue as durable before consuming.
	Declare bool

	// IdleTimeout ends Run after no delivery arrived for this long.
	// Zero waits until the context ends or the channel closes.
	IdleTimeout time.Duration

	// Limit ends Run after this many events. Zero means no limit.
	Limit int
}

// Validate checks the configuration.
func (c AMQPConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("amqp url is required")
	}
	if strings.TrimSpace(c.Queue) == "" {
		return fmt.Errorf("amqp queue is required")
	}
	if c.Prefetch < 0 {
		return fmt.Errorf("amqp prefetch must be >= 0")
	}
	if c.Limit < 0 {
		return fmt.Errorf("amqp limit must be >= 0")
	}
	if c.Prefetch > 0 && c.Limit > c.Prefetch {
		return fmt.Errorf("amqp limit %d exceeds prefetch %d", c.Limit, c.Prefetch)
	}
	return nil
}

// AMQPSource consumes events from a queue with manual acknowledgement.
//
// Deliveries are settled together with the task they fed: Run leaves every
// written delivery unacked, Commit acks them once the task's files are
// committed, and Rollback requeues them after an abort. An undecodable
// delivery is rejected without requeue when it is read, since no attempt
// could ever write it.
type AMQPSource struct {
	cfg    AMQPConfig
	codec  *Codec
	logger *slog.Logger

	conn       *amqp.Connection
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery

	// last is the newest unsettled delivery; settling it with multiple set
	// settles every earlier one on the channel too.
	last      amqp.Delivery
	unsettled int
}

// DialAMQP connects, sets the prefetch window, and starts consuming.
func DialAMQP(cfg AMQPConfig, codec *Codec, logger *slog.Logger) (*AMQPSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "deltasink"
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}
	if cfg.Declare {
		if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue: %w", err)
		}
	}
	deliveries, err := ch.Consume(cfg.Queue, cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("consume queue: %w", err)
	}

	s := newAMQPSource(cfg, codec, logger, deliveries)
	s.conn, s.ch = conn, ch
	return s, nil
}

func newAMQPSource(cfg AMQPConfig, codec *Codec, logger *slog.Logger, deliveries <-chan amqp.Delivery) *AMQPSource {
	return &AMQPSource{cfg: cfg, codec: codec, logger: logger, deliveries: deliveries}
}

// Run feeds deliveries to w until the context ends, the delivery channel
// closes, the idle timeout or limit is reached, or an event fails. It
// returns the number of events written. Written deliveries stay unsettled;
// follow Run with Commit or Rollback.
func (s *AMQPSource) Run(ctx context.Context, w Writer) (int, error) {
	n := 0
	var idle <-chan time.Time
	for {
		if s.cfg.Limit > 0 && n >= s.cfg.Limit {
			return n, nil
		}
		if s.cfg.IdleTimeout > 0 {
			idle = time.After(s.cfg.IdleTimeout)
		}

		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-idle:
			s.logger.Debug("amqp source idle", "queue", s.cfg.Queue, "events", n)
			return n, nil
		case d, ok := <-s.deliveries:
			if !ok {
				return n, nil
			}
			if err := s.handleDelivery(ctx, d, w); err != nil {
				return n, err
			}
			n++
		}
	}
}

// handleDelivery decodes and writes one delivery. A decoded delivery is
// left unsettled even when the write fails, so Rollback requeues it.
func (s *AMQPSource) handleDelivery(ctx context.Context, d amqp.Delivery, w Writer) error {
	row, err := s.codec.Decode(d.Body)
	if err != nil {
		if nerr := d.Nack(false, false); nerr != nil {
			err = errors.Join(err, fmt.Errorf("nack: %w", nerr))
		}
		return fmt.Errorf("delivery %d: %w", d.DeliveryTag, err)
	}

	s.last = d
	s.unsettled++
	if err := w.Write(ctx, row); err != nil {
		return fmt.Errorf("delivery %d: %w", d.DeliveryTag, err)
	}
	s.logger.Debug("event written",
		"delivery_tag", d.DeliveryTag,
		"op", row.Kind.ShortString())
	return nil
}

// Unsettled returns how many deliveries await Commit or Rollback.
func (s *AMQPSource) Unsettled() int {
	return s.unsettled
}

// Commit acks every unsettled delivery. Call it only after the task that
// consumed them was committed.
func (s *AMQPSource) Commit() error {
	if s.unsettled == 0 {
		return nil
	}
	n := s.unsettled
	if err := s.last.Ack(true); err != nil {
		return fmt.Errorf("ack %d deliveries: %w", n, err)
	}
	s.unsettled = 0
	s.logger.Debug("deliveries acked", "queue", s.cfg.Queue, "count", n)
	return nil
}

// Rollback nacks every unsettled delivery with requeue, so the events are
// redelivered to the next task.
func (s *AMQPSource) Rollback() error {
	if s.unsettled == 0 {
		return nil
	}
	n := s.unsettled
	if err := s.last.Nack(true, true); err != nil {
		return fmt.Errorf("requeue %d deliveries: %w", n, err)
	}
	s.unsettled = 0
	s.logger.Info("deliveries requeued", "queue", s.cfg.Queue, "count", n)
	return nil
}

// Close cancels the consumer and closes the channel and connection.
func (s *AMQPSource) Close() error {
	var errs []error
	if s.ch != nil {
		if err := s.ch.Cancel(s.cfg.ConsumerTag, false); err != nil {
			errs = append(errs, err)
		}
		if err := s.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
