// Package store is the Mongo persistence for notifications.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"connectify/module/notify/model"
	"connectify/service/mgo"
	"connectify/tools/ids"
)

type NotificationStore struct {
	coll *mongo.Collection
}

func NewNotificationStore(db *mongo.Database) *NotificationStore {
	return &NotificationStore{coll: db.Collection((&model.Notification{}).TableName())}
}

func (s *NotificationStore) Insert(ctx context.Context, n *model.Notification) error {
	if n.NotificationID == "" {
		n.NotificationID = ids.GenerateString()
	}
	n.Seen = false
	n.CreatedAt = time.Now()
	_, err := s.coll.InsertOne(ctx, n)
	return mgo.MapErr(err, "insert notification")
}

func (s *NotificationStore) Get(ctx context.Context, notificationID string) (*model.Notification, error) {
	var n model.Notification
	err := s.coll.FindOne(ctx, bson.M{"notification_id": notificationID}).Decode(&n)
	if err != nil {
		return nil, mgo.MapErr(err, "get notification")
	}
	return &n, nil
}

// ListForUser returns the recipient's notifications newest first.
func (s *NotificationStore) ListForUser(ctx context.Context, userID string, limit int64) ([]*model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cur, err := s.coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, mgo.MapErr(err, "list notifications")
	}
	defer cur.Close(ctx)
	var out []*model.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, mgo.MapErr(err, "decode notifications")
	}
	return out, nil
}

func (s *NotificationStore) UnseenCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"user_id": userID, "seen": false})
	return n, mgo.MapErr(err, "count unseen notifications")
}

// MarkAllSeen flips every unseen notification for the recipient and returns
// the ids it touched. Reads the unseen set first so a repeat call reports
// nothing instead of re-claiming documents.
func (s *NotificationStore) MarkAllSeen(ctx context.Context, userID string) ([]string, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"user_id": userID, "seen": false},
		options.Find().SetProjection(bson.M{"notification_id": 1}))
	if err != nil {
		return nil, mgo.MapErr(err, "find unseen notifications")
	}
	var rows []struct {
		NotificationID string `bson:"notification_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, mgo.MapErr(err, "decode unseen notifications")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	seen := make([]string, 0, len(rows))
	for _, r := range rows {
		seen = append(seen, r.NotificationID)
	}
	_, err = s.coll.UpdateMany(ctx,
		bson.M{"notification_id": bson.M{"$in": seen}},
		bson.M{"$set": bson.M{"seen": true}})
	if err != nil {
		return nil, mgo.MapErr(err, "mark notifications seen")
	}
	return seen, nil
}

// Revoke deletes the unseen notification a prior action created, matching on
// actor, kind and subject. Already-seen notifications stay; deleting read
// history would be confusing. Returns the id removed, or "" when nothing
// matched.
func (s *NotificationStore) Revoke(ctx context.Context, userID, fromUserID, kind string, subject model.Subject) (string, error) {
	filter := bson.M{
		"user_id":      userID,
		"from_user_id": fromUserID,
		"kind":         kind,
		"seen":         false,
	}
	if subject.PostID != "" {
		filter["subject.post_id"] = subject.PostID
	}
	if subject.CommentID != "" {
		filter["subject.comment_id"] = subject.CommentID
	}
	if subject.RequestID != "" {
		filter["subject.request_id"] = subject.RequestID
	}
	if subject.FollowID != "" {
		filter["subject.follow_id"] = subject.FollowID
	}
	var removed struct {
		NotificationID string `bson:"notification_id"`
	}
	err := s.coll.FindOneAndDelete(ctx, filter,
		options.FindOneAndDelete().SetProjection(bson.M{"notification_id": 1})).Decode(&removed)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", mgo.MapErr(err, "revoke notification")
	}
	return removed.NotificationID, nil
}

// UpdateKind rewrites a notification in place, used when a pending request
// notification becomes a settled one.
func (s *NotificationStore) UpdateKind(ctx context.Context, notificationID, kind string, subject model.Subject) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"notification_id": notificationID},
		bson.M{"$set": bson.M{"kind": kind, "subject": subject}})
	if err != nil {
		return mgo.MapErr(err, "update notification kind")
	}
	if res.MatchedCount == 0 {
		return mgo.MapErr(mongo.ErrNoDocuments, "update notification kind")
	}
	return nil
}

func (s *NotificationStore) DeleteForUser(ctx context.Context, userID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"user_id": userID})
	return mgo.MapErr(err, "delete notifications for user")
}
