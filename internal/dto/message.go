package dto

import "time"

type SendMessageRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type MessageResponse struct {
	ID                   uint      `json:"id"`
	Content              string    `json:"content"`
	SenderAddress        string    `json:"senderAddress"`
	SenderRegistrationID uint32    `json:"senderRegistrationId"`
	RecipientAddress     string    `json:"recipientAddress"`
	Created              time.Time `json:"created"`
}

// Per-id outcomes for mailbox deletion; returned positionally, one per
// requested id.
const (
	MessageDeleted     = "message_deleted"
	NotMessageOwner    = "not_message_owner"
	NonExistentMessage = "non_existent_message"
)
