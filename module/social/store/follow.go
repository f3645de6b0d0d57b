// Package store is the Mongo persistence for the follow graph and follow
// requests.
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

type FollowStore struct {
	coll *mongo.Collection
}

func NewFollowStore(db *mongo.Database) *FollowStore {
	return &FollowStore{coll: db.Collection((&model.Follow{}).TableName())}
}

// Create inserts the follower->followee edge. The unique pair index turns a
// repeat follow into ErrAlreadyExists.
func (s *FollowStore) Create(ctx context.Context, followerID, followeeID string) (*model.Follow, error) {
	f := &model.Follow{
		FollowID:   ids.GenerateString(),
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now(),
	}
	if _, err := s.coll.InsertOne(ctx, f); err != nil {
		return nil, mgo.MapErr(err, "create follow")
	}
	return f, nil
}

// Delete removes the edge and returns it, so the caller can revoke what the
// follow produced. A missing edge is ErrNotFound.
func (s *FollowStore) Delete(ctx context.Context, followerID, followeeID string) (*model.Follow, error) {
	var f model.Follow
	err := s.coll.FindOneAndDelete(ctx,
		bson.M{"follower_id": followerID, "followee_id": followeeID}).Decode(&f)
	if err != nil {
		return nil, mgo.MapErr(err, "delete follow")
	}
	return &f, nil
}

func (s *FollowStore) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx,
		bson.M{"follower_id": followerID, "followee_id": followeeID})
	if err != nil {
		return false, mgo.MapErr(err, "check follow")
	}
	return n > 0, nil
}

func (s *FollowStore) Followers(ctx context.Context, userID string) ([]*model.Follow, error) {
	return s.find(ctx, bson.M{"followee_id": userID}, "list followers")
}

func (s *FollowStore) Following(ctx context.Context, userID string) ([]*model.Follow, error) {
	return s.find(ctx, bson.M{"follower_id": userID}, "list following")
}

func (s *FollowStore) find(ctx context.Context, filter bson.M, op string) ([]*model.Follow, error) {
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, mgo.MapErr(err, op)
	}
	var out []*model.Follow
	if err := cur.All(ctx, &out); err != nil {
		return nil, mgo.MapErr(err, op)
	}
	return out, nil
}
