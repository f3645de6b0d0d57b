package model

import "time"

// Follow is a directed edge: follower sees followee's activity.
type Follow struct {
	FollowID   string    `bson:"follow_id" json:"followId"`
	FollowerID string    `bson:"follower_id" json:"followerId"`
	FolloweeID string    `bson:"followee_id" json:"followeeId"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

func (Follow) TableName() string { return "follows" }

// Follow request lifecycle. A request is created PENDING and settles exactly
// once; settled requests are kept for audit rather than deleted.
const (
	RequestPending  = "PENDING"
	RequestAccepted = "ACCEPTED"
	RequestRejected = "REJECTED"
)

type FollowRequest struct {
	RequestID      string    `bson:"request_id" json:"requestId"`
	FromUserID     string    `bson:"from_user_id" json:"fromUserId"`
	ToUserID       string    `bson:"to_user_id" json:"toUserId"`
	Status         string    `bson:"status" json:"status"`
	NotificationID string    `bson:"notification_id,omitempty" json:"-"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
}

func (FollowRequest) TableName() string { return "follow_requests" }
