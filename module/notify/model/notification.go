package model

import "time"

// Notification kinds. The kind doubles as the realtime event name pushed to
// the recipient, so the client switches on one vocabulary.
const (
	KindLikePost              = "LIKE_POST"
	KindCommentPost           = "COMMENT_POST"
	KindFollowing             = "FOLLOWING"
	KindFollowRequestSent     = "FOLLOW_REQUEST_SENT"
	KindFollowRequestAccepted = "FOLLOW_REQUEST_ACCEPTED"
)

// Subject points a notification at the thing it is about. At most one field
// is set depending on the kind.
type Subject struct {
	PostID    string `bson:"post_id,omitempty" json:"postId,omitempty"`
	CommentID string `bson:"comment_id,omitempty" json:"commentId,omitempty"`
	RequestID string `bson:"request_id,omitempty" json:"requestId,omitempty"`
	FollowID  string `bson:"follow_id,omitempty" json:"followId,omitempty"`
}

type Notification struct {
	NotificationID string    `bson:"notification_id" json:"notificationId"`
	UserID         string    `bson:"user_id" json:"userId"` // recipient
	FromUserID     string    `bson:"from_user_id" json:"fromUserId"`
	Kind           string    `bson:"kind" json:"kind"`
	Subject        Subject   `bson:"subject,omitempty" json:"subject,omitempty"`
	Seen           bool      `bson:"seen" json:"seen"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
