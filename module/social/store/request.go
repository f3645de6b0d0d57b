package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"connectify/module/social/model"
	"connectify/service/mgo"
	"connectify/tools/ids"
)

type RequestStore struct {
	coll *mongo.Collection
}

func NewRequestStore(db *mongo.Database) *RequestStore {
	return &RequestStore{coll: db.Collection((&model.FollowRequest{}).TableName())}
}

// Create inserts a PENDING request. The partial unique index rejects a second
// live request for the same direction with ErrAlreadyExists.
func (s *RequestStore) Create(ctx context.Context, fromUserID, toUserID string) (*model.FollowRequest, error) {
	now := time.Now()
	req := &model.FollowRequest{
		RequestID:  ids.GenerateString(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     model.RequestPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.coll.InsertOne(ctx, req); err != nil {
		return nil, mgo.MapErr(err, "create follow request")
	}
	return req, nil
}

func (s *RequestStore) Get(ctx context.Context, requestID string) (*model.FollowRequest, error) {
	var req model.FollowRequest
	err := s.coll.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&req)
	if err != nil {
		return nil, mgo.MapErr(err, "get follow request")
	}
	return &req, nil
}

// SetNotification records which notification the request produced so settling
// the request can rewrite it later.
func (s *RequestStore) SetNotification(ctx context.Context, requestID, notificationID string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"request_id": requestID},
		bson.M{"$set": bson.M{"notification_id": notificationID}})
	return mgo.MapErr(err, "set request notification")
}

// Settle moves a PENDING request to its final status. The status guard in the
// filter makes settlement first-wins: the second settler gets ErrNotFound.
func (s *RequestStore) Settle(ctx context.Context, requestID, status string) (*model.FollowRequest, error) {
	var req model.FollowRequest
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"request_id": requestID, "status": model.RequestPending},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}}).Decode(&req)
	if err != nil {
		return nil, mgo.MapErr(err, "settle follow request")
	}
	// FindOneAndUpdate returns the pre-image by default; reflect the new
	// status for the caller.
	req.Status = status
	return &req, nil
}

// DeletePending removes the live request between two users, returning it so
// the caller can revoke the notification it carried.
func (s *RequestStore) DeletePending(ctx context.Context, fromUserID, toUserID string) (*model.FollowRequest, error) {
	var req model.FollowRequest
	err := s.coll.FindOneAndDelete(ctx, bson.M{
		"from_user_id": fromUserID,
		"to_user_id":   toUserID,
		"status":       model.RequestPending,
	}).Decode(&req)
	if err != nil {
		return nil, mgo.MapErr(err, "cancel follow request")
	}
	return &req, nil
}

// PendingFor lists the live requests addressed to a user, newest first.
func (s *RequestStore) PendingFor(ctx context.Context, toUserID string) ([]*model.FollowRequest, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"to_user_id": toUserID, "status": model.RequestPending})
	if err != nil {
		return nil, mgo.MapErr(err, "list follow requests")
	}
	var out []*model.FollowRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, mgo.MapErr(err, "list follow requests")
	}
	return out, nil
}

// HasPending reports whether a live request already exists in either
// direction between two users.
func (s *RequestStore) HasPending(ctx context.Context, userA, userB string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{
		"status": model.RequestPending,
		"$or": []bson.M{
			{"from_user_id": userA, "to_user_id": userB},
			{"from_user_id": userB, "to_user_id": userA},
		},
	})
	if err != nil {
		return false, mgo.MapErr(err, "check pending request")
	}
	return n > 0, nil
}
