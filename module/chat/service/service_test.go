package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectify/module/chat/model"
	"connectify/service/gateway"
	"connectify/tools/errs"
	"connectify/tools/ids"
)

// sinkRecorder captures dispatched events in order.
type sinkRecorder struct {
	mu     sync.Mutex
	events []*gateway.Event
}

func (s *sinkRecorder) Dispatch(_ context.Context, ev *gateway.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *sinkRecorder) all() []*gateway.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*gateway.Event(nil), s.events...)
}

func (s *sinkRecorder) named(name string) []*gateway.Event {
	var out []*gateway.Event
	for _, ev := range s.all() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// memConvStore is an in-memory ConversationStore with the same find-or-create
// semantics as the Mongo one.
type memConvStore struct {
	mu      sync.Mutex
	byID    map[string]*model.Conversation
	byKey   map[string]*model.Conversation
	failSet int // SetLastMessage failures to inject
}

func newMemConvStore() *memConvStore {
	return &memConvStore{byID: map[string]*model.Conversation{}, byKey: map[string]*model.Conversation{}}
}

func (m *memConvStore) FindOrCreateDirect(_ context.Context, a, b string) (*model.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.DirectMemberKey(a, b)
	if conv, ok := m.byKey[key]; ok {
		return conv, false, nil
	}
	conv := &model.Conversation{
		ConversationID: ids.GenerateString(),
		MemberKey:      key,
		Members: []model.Member{
			{UserID: a, Role: model.RoleMember},
			{UserID: b, Role: model.RoleMember},
		},
	}
	m.byID[conv.ConversationID] = conv
	m.byKey[key] = conv
	return conv, true, nil
}

func (m *memConvStore) CreateGroup(_ context.Context, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv.ConversationID == "" {
		conv.ConversationID = ids.GenerateString()
	}
	conv.IsGroup = true
	m.byID[conv.ConversationID] = conv
	return nil
}

func (m *memConvStore) Get(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[id]
	if !ok {
		return nil, errs.ErrNotFound.Wrap()
	}
	return conv, nil
}

func (m *memConvStore) ListForUser(_ context.Context, userID string) ([]*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Conversation
	for _, conv := range m.byID {
		if conv.HasMember(userID) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (m *memConvStore) SetLastMessage(_ context.Context, convID, msgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet > 0 {
		m.failSet--
		return errs.ErrStoreTransient.Wrap()
	}
	conv, ok := m.byID[convID]
	if !ok {
		return errs.ErrNotFound.Wrap()
	}
	conv.LastMessageID = msgID
	return nil
}

func (m *memConvStore) AddMember(_ context.Context, convID string, member model.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[convID]
	if !ok {
		return errs.ErrNotFound.Wrap()
	}
	if !conv.HasMember(member.UserID) {
		conv.Members = append(conv.Members, member)
	}
	return nil
}

func (m *memConvStore) RemoveMember(_ context.Context, convID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[convID]
	if !ok {
		return errs.ErrNotFound.Wrap()
	}
	kept := conv.Members[:0]
	for _, mem := range conv.Members {
		if mem.UserID != userID {
			kept = append(kept, mem)
		}
	}
	conv.Members = kept
	return nil
}

func (m *memConvStore) Delete(_ context.Context, convID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[convID]
	if !ok {
		return errs.ErrNotFound.Wrap()
	}
	delete(m.byID, convID)
	delete(m.byKey, conv.MemberKey)
	return nil
}

type memMsgStore struct {
	mu   sync.Mutex
	msgs []*model.Message
}

func (m *memMsgStore) Insert(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.MessageID == "" {
		msg.MessageID = ids.GenerateString()
	}
	if msg.MessageType == "" {
		msg.MessageType = model.TypeText
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *memMsgStore) ListPage(_ context.Context, convID string, page, pageSize int64) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].ConversationID == convID {
			out = append(out, m.msgs[i])
		}
	}
	return out, nil
}

func (m *memMsgStore) MarkSeen(_ context.Context, convID, acker string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flipped []string
	for _, msg := range m.msgs {
		if msg.ConversationID == convID && msg.SenderID != acker && !msg.Seen {
			msg.Seen = true
			flipped = append(flipped, msg.MessageID)
		}
	}
	return flipped, nil
}

func (m *memMsgStore) Get(_ context.Context, id string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.MessageID == id {
			return msg, nil
		}
	}
	return nil, errs.ErrNotFound.Wrap()
}

func (m *memMsgStore) Delete(_ context.Context, id string) error { return nil }

func (m *memMsgStore) DeleteByConversation(_ context.Context, convID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.msgs[:0]
	for _, msg := range m.msgs {
		if msg.ConversationID != convID {
			kept = append(kept, msg)
		}
	}
	m.msgs = kept
	return nil
}

func newTestChat() (*ChatService, *memConvStore, *memMsgStore, *sinkRecorder) {
	convs := newMemConvStore()
	msgs := &memMsgStore{}
	sink := &sinkRecorder{}
	return NewChatService(convs, msgs, sink), convs, msgs, sink
}

func TestCreateDirectConverges(t *testing.T) {
	svc, _, _, sink := newTestChat()
	ctx := context.Background()

	first, created, err := svc.CreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, created)

	// Opposite direction resolves to the same conversation, without a second
	// NEW_CHAT to anyone.
	second, created, err := svc.CreateDirect(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	newChats := sink.named(gateway.EventNewChat)
	require.Len(t, newChats, 1)
	assert.Equal(t, []string{"bob"}, newChats[0].Targets)
}

func TestCreateDirectRejectsSelf(t *testing.T) {
	svc, _, _, _ := newTestChat()

	_, _, err := svc.CreateDirect(context.Background(), "alice", "alice")
	require.Error(t, err)
	assert.Equal(t, errs.ArgsError, errs.Code(err))
}

func TestSendMessageRequiresMembership(t *testing.T) {
	svc, _, _, sink := newTestChat()
	ctx := context.Background()
	conv, _, err := svc.CreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, conv.ConversationID, "mallory", "hi", "", nil)
	require.Error(t, err)
	assert.True(t, errs.ErrNotAMember.Is(err))
	assert.Empty(t, sink.named(gateway.EventNewMessage), "a rejected send must not notify anyone")
}

func TestSendMessageNotifiesOtherMembersOnly(t *testing.T) {
	svc, convs, _, sink := newTestChat()
	ctx := context.Background()
	conv, _, err := svc.CreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	msg, err := svc.SendMessage(ctx, conv.ConversationID, "alice", "hello", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", msg.RecipientID)
	assert.Equal(t, model.TypeText, msg.MessageType)

	evs := sink.named(gateway.EventNewMessage)
	require.Len(t, evs, 1)
	assert.Equal(t, []string{"bob"}, evs[0].Targets, "the sender's own devices get the message by echo, not by event")

	stored, err := convs.Get(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, msg.MessageID, stored.LastMessageID)
}

func TestSendMessageSurvivesTransientPointerFailure(t *testing.T) {
	svc, convs, _, _ := newTestChat()
	ctx := context.Background()
	conv, _, err := svc.CreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	convs.failSet = 1 // first SetLastMessage attempt fails, retry succeeds
	msg, err := svc.SendMessage(ctx, conv.ConversationID, "alice", "hello", "", nil)
	require.NoError(t, err)

	stored, err := convs.Get(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, msg.MessageID, stored.LastMessageID)
}

func TestMarkSeenIsIdempotent(t *testing.T) {
	svc, _, _, sink := newTestChat()
	ctx := context.Background()
	conv, _, err := svc.CreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, conv.ConversationID, "alice", "one", "", nil)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, conv.ConversationID, "alice", "two", "", nil)
	require.NoError(t, err)

	ids1, err := svc.MarkSeen(ctx, conv.ConversationID, "bob")
	require.NoError(t, err)
	assert.Len(t, ids1, 2)

	receipts := sink.named(gateway.EventSeenMessages)
	require.Len(t, receipts, 1)
	assert.Equal(t, []string{"alice"}, receipts[0].Targets)

	// Nothing left unseen: no write, no event.
	ids2, err := svc.MarkSeen(ctx, conv.ConversationID, "bob")
	require.NoError(t, err)
	assert.Empty(t, ids2)
	assert.Len(t, sink.named(gateway.EventSeenMessages), 1)
}

func TestListMessagesAndAcknowledgeFirstPage(t *testing.T) {
	svc, _, _, sink := newTestChat()
	ctx := context.Background()
	conv, _, err := svc.CreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, conv.ConversationID, "alice", "hello", "", nil)
	require.NoError(t, err)

	msgs, err := svc.ListMessagesAndAcknowledge(ctx, conv.ConversationID, "bob", 1, 20)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Len(t, sink.named(gateway.EventSeenMessages), 1, "reading page one acknowledges the unseen messages")

	// Deeper pages are pure reads.
	_, err = svc.ListMessagesAndAcknowledge(ctx, conv.ConversationID, "bob", 2, 20)
	require.NoError(t, err)
	assert.Len(t, sink.named(gateway.EventSeenMessages), 1)
}

func TestDeleteConversationCascades(t *testing.T) {
	svc, _, msgs, sink := newTestChat()
	ctx := context.Background()
	conv, _, err := svc.CreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, conv.ConversationID, "alice", "hello", "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteConversation(ctx, "alice", conv.ConversationID))
	assert.Empty(t, msgs.msgs)

	refetch := sink.named(gateway.EventRefetchChats)
	require.Len(t, refetch, 1)
	assert.Equal(t, []string{"bob"}, refetch[0].Targets)

	_, err = svc.GetConversation(ctx, "alice", conv.ConversationID)
	assert.True(t, errs.ErrNotFound.Is(err))
}

func TestGroupMembershipRules(t *testing.T) {
	svc, _, _, sink := newTestChat()
	ctx := context.Background()

	conv, err := svc.CreateGroup(ctx, "alice", "goats", []string{"bob", "carol"})
	require.NoError(t, err)
	assert.True(t, conv.IsGroup)
	assert.True(t, conv.IsAdmin("alice"))

	newChats := sink.named(gateway.EventNewChat)
	require.Len(t, newChats, 1)
	assert.ElementsMatch(t, []string{"bob", "carol"}, newChats[0].Targets)

	// Non-admin cannot add.
	err = svc.AddMember(ctx, "bob", conv.ConversationID, "dave")
	assert.Equal(t, errs.PermissionDenied, errs.Code(err))

	require.NoError(t, svc.AddMember(ctx, "alice", conv.ConversationID, "dave"))

	// A member may leave on their own.
	require.NoError(t, svc.RemoveMember(ctx, "carol", conv.ConversationID, "carol"))

	// But cannot remove someone else.
	err = svc.RemoveMember(ctx, "bob", conv.ConversationID, "dave")
	assert.Equal(t, errs.PermissionDenied, errs.Code(err))
}

func TestMembershipChangesRejectedOnDirect(t *testing.T) {
	svc, _, _, _ := newTestChat()
	ctx := context.Background()
	conv, _, err := svc.CreateDirect(ctx, "alice", "bob")
	require.NoError(t, err)

	err = svc.AddMember(ctx, "alice", conv.ConversationID, "carol")
	assert.Equal(t, errs.ArgsError, errs.Code(err))
}
