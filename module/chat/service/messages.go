package service

import (
	"context"

	"connectify/logger"
	"connectify/module/chat/model"
	"connectify/service/gateway"
	"connectify/tools/errs"
)

// SendMessage persists a message into a conversation the sender belongs to,
// advances the conversation's last-message pointer, and fans the message out
// to every other member. The message is durable before anyone is notified.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, body, messageType string, attachments []string) (*model.Message, error) {
	if body == "" && len(attachments) == 0 {
		return nil, errs.ErrArgs.WrapMsg("message needs a body or attachments")
	}
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(senderID) {
		return nil, errs.ErrNotAMember.Wrap()
	}
	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		MessageType:    messageType,
		Attachments:    attachments,
	}
	if !conv.IsGroup {
		others := conv.OtherMemberIDs(senderID)
		if len(others) == 1 {
			msg.RecipientID = others[0]
		}
	}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.setLastMessage(ctx, conversationID, msg.MessageID); err != nil {
		// The message itself is durable and listable; a stale pointer
		// only affects conversation-list previews.
		logger.Warnf("[chat] set last message conv=%s msg=%s: %v", conversationID, msg.MessageID, err)
	}
	s.emit(ctx, gateway.NewEvent(gateway.EventNewMessage, msg, conv.OtherMemberIDs(senderID)...))
	return msg, nil
}

func (s *ChatService) setLastMessage(ctx context.Context, conversationID, messageID string) error {
	_, err := retryOnce(func() (struct{}, error) {
		return struct{}{}, s.convs.SetLastMessage(ctx, conversationID, messageID)
	})
	return err
}

// MarkSeen flips every message addressed to userID in the conversation to
// seen and tells the other members which ones. Calling it again with nothing
// left unseen is a no-op: no write, no event.
func (s *ChatService) MarkSeen(ctx context.Context, conversationID, userID string) ([]string, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, errs.ErrNotAMember.Wrap()
	}
	ids, err := retryOnce(func() ([]string, error) {
		return s.msgs.MarkSeen(ctx, conversationID, userID)
	})
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.emit(ctx, gateway.NewEvent(gateway.EventSeenMessages, seenReceipt{
			ConversationID: conversationID,
			SeenBy:         userID,
			MessageIDs:     ids,
		}, conv.OtherMemberIDs(userID)...))
	}
	return ids, nil
}

type seenReceipt struct {
	ConversationID string   `json:"conversationId"`
	SeenBy         string   `json:"seenBy"`
	MessageIDs     []string `json:"messageIds"`
}

// ListMessagesAndAcknowledge returns one page of a conversation's history,
// newest first. Reading the first page acknowledges it: everything addressed
// to the reader is marked seen, exactly as if MarkSeen had been called.
func (s *ChatService) ListMessagesAndAcknowledge(ctx context.Context, conversationID, userID string, page, pageSize int64) ([]*model.Message, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, errs.ErrNotAMember.Wrap()
	}
	msgs, err := s.msgs.ListPage(ctx, conversationID, page, pageSize)
	if err != nil {
		return nil, err
	}
	if page <= 1 {
		if _, err := s.MarkSeen(ctx, conversationID, userID); err != nil {
			logger.Warnf("[chat] acknowledge on read conv=%s user=%s: %v", conversationID, userID, err)
		}
	}
	return msgs, nil
}
