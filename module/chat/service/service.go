// Package service is the conversation manager: canonical conversation
// identity, the last-message pointer, and per-message seen transitions.
// Mutations persist first and emit events after; a failed persist never
// produces an event.
package service

import (
	"context"

	"connectify/logger"
	"connectify/module/chat/model"
	"connectify/service/gateway"
	"connectify/tools/errs"
)

// ConversationStore is what the service needs from conversation persistence.
// The Mongo implementation lives in module/chat/store; tests swap in a mock.
type ConversationStore interface {
	FindOrCreateDirect(ctx context.Context, userA, userB string) (*model.Conversation, bool, error)
	CreateGroup(ctx context.Context, conv *model.Conversation) error
	Get(ctx context.Context, conversationID string) (*model.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Conversation, error)
	SetLastMessage(ctx context.Context, conversationID, messageID string) error
	AddMember(ctx context.Context, conversationID string, member model.Member) error
	RemoveMember(ctx context.Context, conversationID, userID string) error
	Delete(ctx context.Context, conversationID string) error
}

type MessageStore interface {
	Insert(ctx context.Context, msg *model.Message) error
	ListPage(ctx context.Context, conversationID string, page, pageSize int64) ([]*model.Message, error)
	MarkSeen(ctx context.Context, conversationID, ackingUserID string) ([]string, error)
	Get(ctx context.Context, messageID string) (*model.Message, error)
	Delete(ctx context.Context, messageID string) error
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type ChatService struct {
	convs  ConversationStore
	msgs   MessageStore
	events gateway.Sink
}

func NewChatService(convs ConversationStore, msgs MessageStore, events gateway.Sink) *ChatService {
	return &ChatService{convs: convs, msgs: msgs, events: events}
}

func (s *ChatService) emit(ctx context.Context, ev *gateway.Event) {
	if s.events != nil {
		s.events.Dispatch(ctx, ev)
	}
}

// retryOnce re-runs an idempotent store call after a transient failure.
func retryOnce[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if err != nil && errs.ErrStoreTransient.Is(err) {
		return fn()
	}
	return v, err
}

// CreateDirect finds or creates the one conversation for the user pair.
// Losing the create race is success-with-redirect: the caller gets the
// surviving conversation either way.
func (s *ChatService) CreateDirect(ctx context.Context, userID, to string) (*model.Conversation, bool, error) {
	if to == "" || to == userID {
		return nil, false, errs.ErrArgs.WrapMsg("direct conversation needs two distinct users")
	}
	type result struct {
		conv    *model.Conversation
		created bool
	}
	r, err := retryOnce(func() (result, error) {
		conv, created, err := s.convs.FindOrCreateDirect(ctx, userID, to)
		return result{conv, created}, err
	})
	if err != nil {
		return nil, false, err
	}
	if r.created {
		s.emit(ctx, gateway.NewEvent(gateway.EventNewChat, r.conv, to))
	}
	return r.conv, r.created, nil
}

// CreateGroup starts a group conversation with the creator as admin.
func (s *ChatService) CreateGroup(ctx context.Context, creator, name string, memberIDs []string) (*model.Conversation, error) {
	members := []model.Member{{UserID: creator, Role: model.RoleAdmin}}
	seen := map[string]struct{}{creator: {}}
	for _, id := range memberIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, model.Member{UserID: id, Role: model.RoleMember})
	}
	if len(members) < 2 {
		return nil, errs.ErrArgs.WrapMsg("a group needs at least two distinct members")
	}
	conv := &model.Conversation{
		Members:   members,
		GroupName: name,
		CreatedBy: creator,
	}
	if err := s.convs.CreateGroup(ctx, conv); err != nil {
		return nil, err
	}
	s.emit(ctx, gateway.NewEvent(gateway.EventNewChat, conv, conv.OtherMemberIDs(creator)...))
	return conv, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	return s.convs.ListForUser(ctx, userID)
}

// GetConversation enforces membership on read.
func (s *ChatService) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(userID) {
		return nil, errs.ErrNotAMember.Wrap()
	}
	return conv, nil
}

// DeleteConversation removes the conversation and cascades over its messages.
func (s *ChatService) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	conv, err := s.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if err := s.convs.Delete(ctx, conversationID); err != nil {
		return err
	}
	if err := s.msgs.DeleteByConversation(ctx, conversationID); err != nil {
		// The conversation is already gone; orphaned messages are
		// unreachable through the API and can be swept later.
		logger.Warnf("[chat] cascade delete messages conv=%s: %v", conversationID, err)
	}
	s.emit(ctx, gateway.NewEvent(gateway.EventRefetchChats, map[string]string{"conversationId": conversationID}, conv.OtherMemberIDs(userID)...))
	return nil
}

// AddMember grows a group conversation. Admin only.
func (s *ChatService) AddMember(ctx context.Context, actor, conversationID, userID string) error {
	conv, err := s.GetConversation(ctx, actor, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return errs.ErrArgs.WrapMsg("membership changes apply to group conversations only")
	}
	if !conv.IsAdmin(actor) {
		return errs.ErrPermissionDenied.WrapMsg("only a group admin can add members")
	}
	targets := conv.OtherMemberIDs(actor)
	if !conv.HasMember(userID) {
		targets = append(targets, userID)
	}
	if err := s.convs.AddMember(ctx, conversationID, model.Member{UserID: userID, Role: model.RoleMember}); err != nil {
		return err
	}
	s.emit(ctx, gateway.NewEvent(gateway.EventRefetchChats, map[string]string{"conversationId": conversationID}, targets...))
	return nil
}

// RemoveMember shrinks a group conversation. Admins can remove anyone;
// members can remove themselves (leave). The removed user is told, which
// keeps the inverse action symmetric with add.
func (s *ChatService) RemoveMember(ctx context.Context, actor, conversationID, userID string) error {
	conv, err := s.GetConversation(ctx, actor, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return errs.ErrArgs.WrapMsg("membership changes apply to group conversations only")
	}
	if actor != userID && !conv.IsAdmin(actor) {
		return errs.ErrPermissionDenied.WrapMsg("only a group admin can remove other members")
	}
	if !conv.HasMember(userID) {
		return errs.ErrNotFound.WrapMsg("user is not in this conversation")
	}
	targets := conv.OtherMemberIDs(actor)
	if actor == userID {
		targets = append(targets, userID)
	}
	if err := s.convs.RemoveMember(ctx, conversationID, userID); err != nil {
		return err
	}
	s.emit(ctx, gateway.NewEvent(gateway.EventRefetchChats, map[string]string{"conversationId": conversationID}, targets...))
	return nil
}
