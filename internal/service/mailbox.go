package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"signalserver/internal/domain"
	"signalserver/internal/dto"
	"signalserver/internal/store"

	"github.com/google/uuid"
)

// Mailbox is the per-device store-and-forward queue.
type Mailbox struct {
	store *store.Store
}

func NewMailbox(st *store.Store) *Mailbox {
	return &Mailbox{store: st}
}

// messageEnvelope is the fraction of the opaque message the server actually
// reads: the registration id the sender believes the recipient has.
type messageEnvelope struct {
	RegistrationID *uint32 `json:"registrationId"`
}

// Send queues a message for the recipient user's device. The recipient is a
// user id resolved by the account collaborator; sender address and
// registration id are stamped from the authenticated sender device.
func (m *Mailbox) Send(ctx context.Context, sender *domain.Device, req dto.SendMessageRequest) (*dto.MessageResponse, error) {
	if req.Recipient == "" || req.Message == "" {
		return nil, fmt.Errorf("%w: recipient and message fields are required", domain.ErrIncorrectArguments)
	}
	if len(req.Message) > 1000 {
		return nil, fmt.Errorf("%w: message content exceeds 1000 characters", domain.ErrIncorrectArguments)
	}
	recipientID, err := uuid.Parse(req.Recipient)
	if err != nil {
		return nil, domain.ErrInvalidRecipient
	}
	var envelope messageEnvelope
	if err := json.Unmarshal([]byte(req.Message), &envelope); err != nil || envelope.RegistrationID == nil {
		return nil, fmt.Errorf("%w: message must be a JSON string carrying registrationId", domain.ErrIncorrectArguments)
	}

	msg := &domain.Message{
		Content:              req.Message,
		SenderAddress:        sender.Address,
		SenderRegistrationID: sender.RegistrationID,
	}
	var recipientAddress string
	err = m.store.WithTx(ctx, func(tx *store.Store) error {
		if _, err := tx.Users().Get(ctx, recipientID); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrNoRecipient
			}
			return err
		}
		recipient, err := tx.Devices().GetByUserID(ctx, recipientID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrNoRecipientDevice
			}
			return err
		}
		if recipient.RegistrationID != *envelope.RegistrationID {
			return domain.ErrRecipientIdentityChanged
		}
		msg.DeviceID = recipient.ID
		recipientAddress = recipient.Address
		return tx.Messages().Create(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	return &dto.MessageResponse{
		ID:                   msg.ID,
		Content:              msg.Content,
		SenderAddress:        msg.SenderAddress,
		SenderRegistrationID: msg.SenderRegistrationID,
		RecipientAddress:     recipientAddress,
		Created:              msg.CreatedAt,
	}, nil
}

// List returns the device's queued messages in stable ascending creation
// order. Re-callable; no cursor state is kept.
func (m *Mailbox) List(ctx context.Context, device *domain.Device) ([]dto.MessageResponse, error) {
	msgs, err := m.store.Messages().ListForDevice(ctx, device.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, dto.MessageResponse{
			ID:                   msg.ID,
			Content:              msg.Content,
			SenderAddress:        msg.SenderAddress,
			SenderRegistrationID: msg.SenderRegistrationID,
			RecipientAddress:     device.Address,
			Created:              msg.CreatedAt,
		})
	}
	return out, nil
}

// Delete processes every id independently and reports a per-id outcome in
// input order. A message owned by another device or already gone never aborts
// the rest of the batch; a failing database does.
func (m *Mailbox) Delete(ctx context.Context, device *domain.Device, ids []uint) ([]string, error) {
	outcomes := make([]string, 0, len(ids))
	for _, id := range ids {
		msg, err := m.store.Messages().Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				outcomes = append(outcomes, dto.NonExistentMessage)
				continue
			}
			return nil, err
		}
		if msg.DeviceID != device.ID {
			outcomes = append(outcomes, dto.NotMessageOwner)
			continue
		}
		if err := m.store.Messages().Delete(ctx, id); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, dto.MessageDeleted)
	}
	return outcomes, nil
}
