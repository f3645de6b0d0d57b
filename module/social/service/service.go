// Package service implements the follow graph and the social actions that
// feed the notification dispatcher: follow requests, follows, likes and
// comments. Inverse actions revoke what the forward action produced.
package service

import (
	"context"

	"connectify/logger"
	notifymodel "connectify/module/notify/model"
	notify "connectify/module/notify/service"
	"connectify/module/social/model"
	"connectify/service/gateway"
	"connectify/tools/errs"
)

type FollowStore interface {
	Create(ctx context.Context, followerID, followeeID string) (*model.Follow, error)
	Delete(ctx context.Context, followerID, followeeID string) (*model.Follow, error)
	Exists(ctx context.Context, followerID, followeeID string) (bool, error)
	Followers(ctx context.Context, userID string) ([]*model.Follow, error)
	Following(ctx context.Context, userID string) ([]*model.Follow, error)
}

type RequestStore interface {
	Create(ctx context.Context, fromUserID, toUserID string) (*model.FollowRequest, error)
	Get(ctx context.Context, requestID string) (*model.FollowRequest, error)
	SetNotification(ctx context.Context, requestID, notificationID string) error
	Settle(ctx context.Context, requestID, status string) (*model.FollowRequest, error)
	DeletePending(ctx context.Context, fromUserID, toUserID string) (*model.FollowRequest, error)
	PendingFor(ctx context.Context, toUserID string) ([]*model.FollowRequest, error)
	HasPending(ctx context.Context, userA, userB string) (bool, error)
}

type SocialService struct {
	follows  FollowStore
	requests RequestStore
	notifier *notify.Notifier
	events   gateway.Sink
}

func NewSocialService(follows FollowStore, requests RequestStore, notifier *notify.Notifier, events gateway.Sink) *SocialService {
	return &SocialService{follows: follows, requests: requests, notifier: notifier, events: events}
}

func (s *SocialService) emit(ctx context.Context, ev *gateway.Event) {
	if s.events != nil {
		s.events.Dispatch(ctx, ev)
	}
}

// SendFollowRequest opens a pending request from one user to another. The
// recipient gets a stored notification plus a realtime nudge to refetch
// their request list.
func (s *SocialService) SendFollowRequest(ctx context.Context, from, to string) (*model.FollowRequest, error) {
	if to == "" || to == from {
		return nil, errs.ErrArgs.WrapMsg("cannot send a follow request to yourself")
	}
	if following, err := s.follows.Exists(ctx, from, to); err != nil {
		return nil, err
	} else if following {
		return nil, errs.ErrAlreadyExists.WrapMsg("already following this user")
	}
	if pending, err := s.requests.HasPending(ctx, from, to); err != nil {
		return nil, err
	} else if pending {
		return nil, errs.ErrAlreadyExists.WrapMsg("a request between these users is already pending")
	}
	req, err := s.requests.Create(ctx, from, to)
	if err != nil {
		return nil, err
	}
	note, err := s.notifier.Notify(ctx, to, from, notifymodel.KindFollowRequestSent,
		notifymodel.Subject{RequestID: req.RequestID})
	if err != nil {
		logger.Warnf("[social] notify follow request req=%s: %v", req.RequestID, err)
	} else if note != nil {
		if err := s.requests.SetNotification(ctx, req.RequestID, note.NotificationID); err != nil {
			logger.Warnf("[social] link request notification req=%s: %v", req.RequestID, err)
		}
		req.NotificationID = note.NotificationID
	}
	s.emit(ctx, gateway.NewEvent(gateway.EventNewRequest, requestRef{RequestID: req.RequestID, FromUserID: from}, to))
	return req, nil
}

type requestRef struct {
	RequestID  string `json:"requestId"`
	FromUserID string `json:"fromUserId"`
}

// CancelFollowRequest withdraws a pending request and takes the recipient's
// unseen notification back with it.
func (s *SocialService) CancelFollowRequest(ctx context.Context, from, to string) error {
	req, err := s.requests.DeletePending(ctx, from, to)
	if err != nil {
		return err
	}
	if err := s.notifier.Revoke(ctx, to, from, notifymodel.KindFollowRequestSent,
		notifymodel.Subject{RequestID: req.RequestID}); err != nil {
		logger.Warnf("[social] revoke request notification req=%s: %v", req.RequestID, err)
	}
	return nil
}

// AcceptFollowRequest settles the request, creates the follow edge, rewrites
// the recipient's request notification into a plain FOLLOWING one, and tells
// the requester they were accepted. Only the addressee can accept; a request
// settles exactly once.
func (s *SocialService) AcceptFollowRequest(ctx context.Context, actor, requestID string) (*model.Follow, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToUserID != actor {
		return nil, errs.ErrPermissionDenied.WrapMsg("only the addressee can accept a follow request")
	}
	// Edge before settle. The unique pair index makes Create safe to repeat,
	// and a failed Settle undoes the edge below; settling first would strand
	// an accepted request with no follow if Create failed.
	follow, err := s.follows.Create(ctx, req.FromUserID, req.ToUserID)
	if err != nil && !errs.ErrAlreadyExists.Is(err) {
		return nil, err
	}
	if _, err := s.requests.Settle(ctx, requestID, model.RequestAccepted); err != nil {
		if follow != nil {
			if _, derr := s.follows.Delete(ctx, req.FromUserID, req.ToUserID); derr != nil {
				logger.Warnf("[social] undo follow after failed settle req=%s: %v", requestID, derr)
			}
		}
		return nil, err
	}
	if req.NotificationID != "" {
		subject := notifymodel.Subject{}
		if follow != nil {
			subject.FollowID = follow.FollowID
		}
		if err := s.notifier.Settle(ctx, req.NotificationID, notifymodel.KindFollowing, subject); err != nil {
			logger.Warnf("[social] settle request notification req=%s: %v", requestID, err)
		}
	}
	if _, err := s.notifier.Notify(ctx, req.FromUserID, req.ToUserID,
		notifymodel.KindFollowRequestAccepted, notifymodel.Subject{RequestID: requestID}); err != nil {
		logger.Warnf("[social] notify accept req=%s: %v", requestID, err)
	}
	s.emit(ctx, gateway.NewEvent(gateway.EventAcceptRequest,
		requestRef{RequestID: requestID, FromUserID: req.FromUserID}, req.FromUserID, req.ToUserID))
	return follow, nil
}

// RejectFollowRequest settles the request and quietly removes the unseen
// notification it created. The requester is not told.
func (s *SocialService) RejectFollowRequest(ctx context.Context, actor, requestID string) error {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.ToUserID != actor {
		return errs.ErrPermissionDenied.WrapMsg("only the addressee can reject a follow request")
	}
	if _, err := s.requests.Settle(ctx, requestID, model.RequestRejected); err != nil {
		return err
	}
	if err := s.notifier.Revoke(ctx, req.ToUserID, req.FromUserID, notifymodel.KindFollowRequestSent,
		notifymodel.Subject{RequestID: requestID}); err != nil {
		logger.Warnf("[social] revoke request notification req=%s: %v", requestID, err)
	}
	return nil
}

// Follow creates the edge directly, for profiles that accept followers
// without a request, and notifies the followee.
func (s *SocialService) Follow(ctx context.Context, follower, followee string) (*model.Follow, error) {
	if followee == "" || followee == follower {
		return nil, errs.ErrArgs.WrapMsg("cannot follow yourself")
	}
	follow, err := s.follows.Create(ctx, follower, followee)
	if err != nil {
		return nil, err
	}
	if _, err := s.notifier.Notify(ctx, followee, follower, notifymodel.KindFollowing,
		notifymodel.Subject{FollowID: follow.FollowID}); err != nil {
		logger.Warnf("[social] notify follow %s->%s: %v", follower, followee, err)
	}
	return follow, nil
}

// Unfollow removes the edge and revokes the unseen FOLLOWING notification the
// follow produced.
func (s *SocialService) Unfollow(ctx context.Context, follower, followee string) error {
	follow, err := s.follows.Delete(ctx, follower, followee)
	if err != nil {
		return err
	}
	return s.notifier.Revoke(ctx, followee, follower, notifymodel.KindFollowing,
		notifymodel.Subject{FollowID: follow.FollowID})
}

// LikePost notifies the post owner. Liking your own post notifies nobody.
func (s *SocialService) LikePost(ctx context.Context, actor, ownerID, postID string) error {
	if postID == "" {
		return errs.ErrArgs.WrapMsg("postId is required")
	}
	_, err := s.notifier.Notify(ctx, ownerID, actor, notifymodel.KindLikePost,
		notifymodel.Subject{PostID: postID})
	return err
}

// UnlikePost revokes the unseen like notification, if the owner has not read
// it yet.
func (s *SocialService) UnlikePost(ctx context.Context, actor, ownerID, postID string) error {
	return s.notifier.Revoke(ctx, ownerID, actor, notifymodel.KindLikePost,
		notifymodel.Subject{PostID: postID})
}

func (s *SocialService) CommentPost(ctx context.Context, actor, ownerID, postID, commentID string) error {
	if postID == "" || commentID == "" {
		return errs.ErrArgs.WrapMsg("postId and commentId are required")
	}
	_, err := s.notifier.Notify(ctx, ownerID, actor, notifymodel.KindCommentPost,
		notifymodel.Subject{PostID: postID, CommentID: commentID})
	return err
}

func (s *SocialService) DeleteComment(ctx context.Context, actor, ownerID, postID, commentID string) error {
	return s.notifier.Revoke(ctx, ownerID, actor, notifymodel.KindCommentPost,
		notifymodel.Subject{PostID: postID, CommentID: commentID})
}

func (s *SocialService) ListFollowers(ctx context.Context, userID string) ([]*model.Follow, error) {
	return s.follows.Followers(ctx, userID)
}

func (s *SocialService) ListFollowing(ctx context.Context, userID string) ([]*model.Follow, error) {
	return s.follows.Following(ctx, userID)
}

func (s *SocialService) ListPendingRequests(ctx context.Context, userID string) ([]*model.FollowRequest, error) {
	return s.requests.PendingFor(ctx, userID)
}
