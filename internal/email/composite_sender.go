package email

import (
	"context"
	"errors"
	"fmt"
)

// CompositeEmailSender delegates sending to several Senders.
type CompositeEmailSender struct {
	senders []Sender
}

// NewCompositeEmailSender returns the concrete type so AddSender can be called.
func NewCompositeEmailSender(senders ...Sender) *CompositeEmailSender {
	return &CompositeEmailSender{senders: senders}
}

func (cs *CompositeEmailSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send calls every sender and joins their errors.
func (cs *CompositeEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(cs.senders) == 0 {
		return fmt.Errorf("no senders configured in CompositeEmailSender")
	}
	var errs []error
	for _, sender := range cs.senders {
		if err := sender.Send(ctx, to, subject, rawMessage); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("composite email send failed: %w", err)
	}
	return nil
}
