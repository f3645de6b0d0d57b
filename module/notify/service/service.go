// Package service is the notification dispatcher: the single entry point
// social actions go through to tell a user something happened. Every
// notification is persisted before the realtime push, so a recipient who is
// offline still finds it on next load.
package service

import (
	"context"

	"connectify/module/notify/model"
	"connectify/service/gateway"
	"connectify/tools/errs"
)

type NotificationStore interface {
	Insert(ctx context.Context, n *model.Notification) error
	Get(ctx context.Context, notificationID string) (*model.Notification, error)
	ListForUser(ctx context.Context, userID string, limit int64) ([]*model.Notification, error)
	UnseenCount(ctx context.Context, userID string) (int64, error)
	MarkAllSeen(ctx context.Context, userID string) ([]string, error)
	Revoke(ctx context.Context, userID, fromUserID, kind string, subject model.Subject) (string, error)
	UpdateKind(ctx context.Context, notificationID, kind string, subject model.Subject) error
}

type Notifier struct {
	store  NotificationStore
	events gateway.Sink
}

func NewNotifier(store NotificationStore, events gateway.Sink) *Notifier {
	return &Notifier{store: store, events: events}
}

func (n *Notifier) emit(ctx context.Context, ev *gateway.Event) {
	if n.events != nil {
		n.events.Dispatch(ctx, ev)
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

// Notify records that from did something kind to the recipient and pushes the
// stored notification to them under the kind's event name. Acting on your own
// content notifies nobody: self-notifications are silently dropped.
func (n *Notifier) Notify(ctx context.Context, to, from, kind string, subject model.Subject) (*model.Notification, error) {
	if to == "" || from == "" {
		return nil, errs.ErrArgs.WrapMsg("notification needs a sender and a recipient")
	}
	if to == from {
		return nil, nil
	}
	note := &model.Notification{
		UserID:     to,
		FromUserID: from,
		Kind:       kind,
		Subject:    subject,
	}
	if err := n.store.Insert(ctx, note); err != nil {
		return nil, err
	}
	n.emit(ctx, gateway.NewEvent(note.Kind, note, to))
	return note, nil
}

// Revoke undoes the unseen notification the matching Notify produced, for
// inverse actions such as unlike or cancelled follow request. Nothing left to
// revoke is a no-op, not an error.
func (n *Notifier) Revoke(ctx context.Context, to, from, kind string, subject model.Subject) error {
	if to == "" || from == "" || to == from {
		return nil
	}
	_, err := retryOnce(func() (string, error) {
		return n.store.Revoke(ctx, to, from, kind, subject)
	})
	return err
}

func (n *Notifier) List(ctx context.Context, userID string, limit int64) ([]*model.Notification, error) {
	return n.store.ListForUser(ctx, userID, limit)
}

func (n *Notifier) UnseenCount(ctx context.Context, userID string) (int64, error) {
	return n.store.UnseenCount(ctx, userID)
}

// MarkAllSeen acknowledges every unseen notification for userID and returns
// the ids flipped. Calling it with nothing unseen returns an empty set. The
// transition is idempotent, so a transient store failure is retried once.
func (n *Notifier) MarkAllSeen(ctx context.Context, userID string) ([]string, error) {
	return retryOnce(func() ([]string, error) {
		return n.store.MarkAllSeen(ctx, userID)
	})
}

// Settle rewrites an existing notification's kind and subject, used when the
// action it describes reaches a final state.
func (n *Notifier) Settle(ctx context.Context, notificationID, kind string, subject model.Subject) error {
	return n.store.UpdateKind(ctx, notificationID, kind, subject)
}
