package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Notifier renders a template and hands it to a Mailer
type Notifier struct {
	renderer  *Renderer
	mailer    Mailer
	storeName string
	bank      BankTransfer
	logger    *zap.Logger
}

// NotifierOption configures a Notifier
type NotifierOption func(*Notifier)

// WithStoreName sets the signature used in every email
func WithStoreName(name string) NotifierOption {
	return func(n *Notifier) {
		n.storeName = name
	}
}

// WithBankTransfer sets the account details for partial approval emails
func WithBankTransfer(bank BankTransfer) NotifierOption {
	return func(n *Notifier) {
		n.bank = bank
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier creates a notifier over the given mailer
func NewNotifier(mailer Mailer, opts ...NotifierOption) (*Notifier, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	n := &Notifier{renderer: renderer, mailer: mailer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify renders kind with data and sends it to the recipient
func (n *Notifier) Notify(ctx context.Context, kind Kind, to string, data *EmailData) error {
	if to == "" {
		return ErrMissingRecipient
	}
	if data == nil {
		data = &EmailData{}
	}
	if data.StoreName == "" {
		data.StoreName = n.storeName
	}
	if kind == KindPartialApproval && data.Bank == nil {
		bank := n.bank
		data.Bank = &bank
	}

	subject, html, err := n.renderer.Render(kind, data)
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, &Message{To: to, Subject: subject, HTML: html}); err != nil {
		return fmt.Errorf("notification: %s email for order #%d: %w", kind, data.OrderNumber, err)
	}
	n.logger.Debug("Notification sent", zap.String("kind", string(kind)), zap.Int64("order_number", data.OrderNumber))
	return nil
}
