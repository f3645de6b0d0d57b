package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"connectify/module/chat/model"
	"connectify/tools/errs"
	"connectify/tools/ids"
)

type ConversationStore struct {
	coll *mongo.Collection
}

func NewConversationStore(db *mongo.Database) *ConversationStore {
	return &ConversationStore{coll: db.Collection((&model.Conversation{}).TableName())}
}

// FindOrCreateDirect resolves the single conversation for an unordered user
// pair, creating it when absent. One conditional upsert keyed by the
// canonical member key: two concurrent calls for (A,B) and (B,A) converge on
// the same document, never two. Returns created=true for the winner.
func (s *ConversationStore) FindOrCreateDirect(ctx context.Context, userA, userB string) (*model.Conversation, bool, error) {
	now := time.Now()
	key := model.DirectMemberKey(userA, userB)
	freshID := ids.GenerateString()
	// member_key/is_group live in the filter; repeating them in $setOnInsert
	// would be a path conflict on upsert.
	onInsert := bson.M{
		"conversation_id": freshID,
		"members": []model.Member{
			{UserID: userA, Role: model.RoleMember},
			{UserID: userB, Role: model.RoleMember},
		},
		"created_at": now,
		"updated_at": now,
	}

	after := options.After
	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{"member_key": key, "is_group": false},
		bson.M{"$setOnInsert": onInsert},
		&options.FindOneAndUpdateOptions{
			Upsert:         boolPtr(true),
			ReturnDocument: &after,
		},
	)
	var conv model.Conversation
	if err := res.Decode(&conv); err != nil {
		// A duplicate-key race means the other writer won; surface the
		// existing document instead.
		if mongo.IsDuplicateKeyError(err) {
			existing, gerr := s.findByMemberKey(ctx, key)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, mapErr(err, "find or create direct conversation")
	}
	created := conv.ConversationID == freshID
	return &conv, created, nil
}

func (s *ConversationStore) findByMemberKey(ctx context.Context, key string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.coll.FindOne(ctx, bson.M{"member_key": key, "is_group": false}).Decode(&conv)
	if err != nil {
		return nil, mapErr(err, "find direct conversation")
	}
	return &conv, nil
}

// CreateGroup inserts a new group conversation.
func (s *ConversationStore) CreateGroup(ctx context.Context, conv *model.Conversation) error {
	conv.IsGroup = true
	conv.MemberKey = ""
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.ConversationID == "" {
		conv.ConversationID = ids.GenerateString()
	}
	_, err := s.coll.InsertOne(ctx, conv)
	return mapErr(err, "create group conversation")
}

func (s *ConversationStore) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&conv)
	if err != nil {
		return nil, mapErr(err, "get conversation")
	}
	return &conv, nil
}

// ListForUser returns the user's conversations, most recently touched first.
func (s *ConversationStore) ListForUser(ctx context.Context, userID string) ([]*model.Conversation, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"members.user_id": userID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, mapErr(err, "list conversations")
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*model.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapErr(err, "decode conversations")
	}
	return out, nil
}

// SetLastMessage advances the last-message pointer and the touch time.
func (s *ConversationStore) SetLastMessage(ctx context.Context, conversationID, messageID string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": bson.M{"last_message_id": messageID, "updated_at": time.Now()}},
	)
	if err != nil {
		return mapErr(err, "set last message")
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WrapMsg("set last message")
	}
	return nil
}

// AddMember appends a member to a group conversation; duplicates are a no-op.
func (s *ConversationStore) AddMember(ctx context.Context, conversationID string, member model.Member) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"conversation_id": conversationID, "is_group": true, "members.user_id": bson.M{"$ne": member.UserID}},
		bson.M{
			"$push": bson.M{"members": member},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return mapErr(err, "add member")
	}
	if res.MatchedCount == 0 {
		// Either the conversation is missing/non-group or the user is
		// already in; distinguish for the caller.
		if _, gerr := s.Get(ctx, conversationID); gerr != nil {
			return gerr
		}
		return nil
	}
	return nil
}

// RemoveMember pulls a member out of a group conversation.
func (s *ConversationStore) RemoveMember(ctx context.Context, conversationID, userID string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"conversation_id": conversationID, "is_group": true},
		bson.M{
			"$pull": bson.M{"members": bson.M{"user_id": userID}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return mapErr(err, "remove member")
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WrapMsg("remove member")
	}
	return nil
}

// Delete removes the conversation document. Message cascade is the service's
// job so the ordering is explicit there.
func (s *ConversationStore) Delete(ctx context.Context, conversationID string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return mapErr(err, "delete conversation")
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound.WrapMsg("delete conversation")
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }
