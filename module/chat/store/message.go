package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"connectify/module/chat/model"
	"connectify/tools/ids"
)

type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{coll: db.Collection((&model.Message{}).TableName())}
}

// Insert persists a new message. The id and timestamp are assigned here so
// callers cannot forge them.
func (s *MessageStore) Insert(ctx context.Context, msg *model.Message) error {
	if msg.MessageID == "" {
		msg.MessageID = ids.GenerateString()
	}
	if msg.MessageType == "" {
		msg.MessageType = model.TypeText
	}
	msg.Seen = false
	msg.CreatedAt = time.Now()
	_, err := s.coll.InsertOne(ctx, msg)
	return mapErr(err, "insert message")
}

// ListPage returns one newest-first page. page starts at 1.
func (s *MessageStore) ListPage(ctx context.Context, conversationID string, page, pageSize int64) ([]*model.Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	cur, err := s.coll.Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetSkip((page-1)*pageSize).
			SetLimit(pageSize),
	)
	if err != nil {
		return nil, mapErr(err, "list messages")
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*model.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapErr(err, "decode messages")
	}
	return out, nil
}

// MarkSeen flips every unseen message addressed to the acking user in one
// batched update and returns the ids that transitioned. The transition is
// one-way by construction: the filter only matches seen=false, so a repeat
// call finds nothing and the flag can never revert.
func (s *MessageStore) MarkSeen(ctx context.Context, conversationID, ackingUserID string) ([]string, error) {
	// No recipient_id in the filter: group messages carry none, and for
	// direct ones sender != acker already selects the inbound side.
	filter := bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": ackingUserID},
		"seen":            false,
	}

	cur, err := s.coll.Find(ctx, filter,
		options.Find().SetProjection(bson.M{"message_id": 1}))
	if err != nil {
		return nil, mapErr(err, "find unseen messages")
	}
	var docs []struct {
		MessageID string `bson:"message_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mapErr(err, "decode unseen messages")
	}
	if len(docs) == 0 {
		return nil, nil
	}
	msgIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		msgIDs = append(msgIDs, d.MessageID)
	}

	_, err = s.coll.UpdateMany(ctx,
		bson.M{"message_id": bson.M{"$in": msgIDs}, "seen": false},
		bson.M{"$set": bson.M{"seen": true}},
	)
	if err != nil {
		return nil, mapErr(err, "mark messages seen")
	}
	return msgIDs, nil
}

// Get fetches one message by id.
func (s *MessageStore) Get(ctx context.Context, messageID string) (*model.Message, error) {
	var msg model.Message
	err := s.coll.FindOne(ctx, bson.M{"message_id": messageID}).Decode(&msg)
	if err != nil {
		return nil, mapErr(err, "get message")
	}
	return &msg, nil
}

// Delete removes a single message.
func (s *MessageStore) Delete(ctx context.Context, messageID string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return mapErr(err, "delete message")
	}
	if res.DeletedCount == 0 {
		return mapErr(mongo.ErrNoDocuments, "delete message")
	}
	return nil
}

// DeleteByConversation cascades a conversation deletion over its messages.
func (s *MessageStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	return mapErr(err, "delete conversation messages")
}
