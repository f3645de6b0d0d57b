package model

import "time"

// Message types on the wire; TEXT_MESSAGE is the default when a client sends
// none.
const (
	TypeText  = "TEXT_MESSAGE"
	TypeImage = "IMAGE_MESSAGE"
)

// Message is immutable after insert except for the one-way seen transition.
// Attachments hold opaque ids resolved by the media collaborator before the
// message reaches this layer.
type Message struct {
	MessageID      string   `bson:"message_id" json:"messageId"`
	ConversationID string   `bson:"conversation_id" json:"conversationId"`
	SenderID       string   `bson:"sender_id" json:"senderId"`
	RecipientID    string   `bson:"recipient_id,omitempty" json:"recipientId,omitempty"`
	Body           string   `bson:"body" json:"body"`
	MessageType    string   `bson:"message_type" json:"messageType"`
	Attachments    []string `bson:"attachments,omitempty" json:"attachments,omitempty"`

	Seen      bool      `bson:"seen" json:"seen"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

func (*Message) TableName() string { return "messages" }
