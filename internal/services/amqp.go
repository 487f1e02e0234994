package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/normalizer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/queue"
)

// AMQPIntake consumes print_job payloads from a broker queue, for sites
// where the order server publishes jobs instead of pushing them over the
// socket.
type AMQPIntake struct {
	url      string
	queue    string
	tag      string
	intake   *Intake
	log      *logger.Logger
	prefetch int
	retry    time.Duration
}

func NewAMQPIntake(url, queueName, consumerTag string, intake *Intake, log *logger.Logger) *AMQPIntake {
	return &AMQPIntake{
		url:      url,
		queue:    queueName,
		tag:      consumerTag,
		intake:   intake,
		log:      log.With("amqp"),
		prefetch: 1,
		retry:    reconnectDelay,
	}
}

// Run consumes until ctx is cancelled, reconnecting after broker errors.
func (a *AMQPIntake) Run(ctx context.Context) {
	defer a.log.RecoverPanic()
	for {
		if err := a.consume(ctx); err != nil {
			a.log.Error(fmt.Sprintf("Consumer stopped. Reconnecting in %s", a.retry), err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.retry):
		}
	}
}

func (a *AMQPIntake) consume(ctx context.Context) error {
	conn, err := amqp.Dial(a.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", a.queue, err)
	}
	if err := ch.Qos(a.prefetch, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(a.queue, a.tag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	a.log.Info("Consuming", a.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-closed:
			if e != nil {
				return fmt.Errorf("channel closed: %s (%d)", e.Reason, e.Code)
			}
			return errors.New("channel closed")
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			a.handle(d)
		}
	}
}

// handle settles one delivery: queued and duplicate jobs are acked,
// malformed ones are rejected without requeue, anything else is requeued.
func (a *AMQPIntake) handle(d amqp.Delivery) {
	_, err := a.intake.Submit(d.Body, model.SourceAMQP)
	var malformed *normalizer.MalformedJobError
	switch {
	case err == nil, errors.Is(err, queue.ErrDuplicate):
		err = d.Ack(false)
	case errors.As(err, &malformed):
		err = d.Nack(false, false)
	default:
		err = d.Nack(false, true)
	}
	if err != nil {
		a.log.Error("Failed to settle delivery", err)
	}
}
