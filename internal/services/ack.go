package services

import (
	"context"
	"fmt"

	"github.com/Riboost-Studio/receipt-print-agent/internal/logger"
	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/reconciler"
)

// FallbackAcknowledger sends acknowledgements over the socket and uses
// the REST route only when the socket could not take the message.
type FallbackAcknowledger struct {
	primary  reconciler.Acknowledger
	fallback reconciler.Acknowledger
	log      *logger.Logger
}

func NewFallbackAcknowledger(primary, fallback reconciler.Acknowledger, log *logger.Logger) *FallbackAcknowledger {
	return &FallbackAcknowledger{primary: primary, fallback: fallback, log: log.With("ack")}
}

func (f *FallbackAcknowledger) Acknowledge(ctx context.Context, ack model.PrintAck) error {
	err := f.primary.Acknowledge(ctx, ack)
	if err == nil || f.fallback == nil {
		return err
	}
	f.log.Warning("Socket acknowledge failed, using REST", err.Error())
	if ferr := f.fallback.Acknowledge(ctx, ack); ferr != nil {
		return fmt.Errorf("socket: %v; rest: %w", err, ferr)
	}
	return nil
}
