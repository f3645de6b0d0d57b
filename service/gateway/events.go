package gateway

import "context"

// Event is the unit handed from the persistence layer to the router: a named,
// JSON-serializable payload addressed to a set of users. It exists only for
// the duration of a dispatch; offline targets are skipped, never queued.
type Event struct {
	Name    string   `json:"name"`
	Targets []string `json:"targets"`
	Payload any      `json:"payload,omitempty"`
}

// Event names pushed to clients. These mirror what the web client listens
// for, so renaming one is a breaking protocol change.
const (
	EventNewMessage    = "NEW_MESSAGE"
	EventNewChat       = "NEW_CHAT"
	EventSeenMessages  = "SEEN_MESSAGES"
	EventRefetchChats  = "REFETCH_CHATS"
	EventNewRequest    = "NEW_REQUEST"
	EventAcceptRequest = "ACCEPT_REQUEST"
	EventLikePost      = "LIKE_POST"
	EventCommentPost   = "COMMENT_POST"
)

// NewEvent builds an event for the given targets.
func NewEvent(name string, payload any, targets ...string) *Event {
	return &Event{Name: name, Targets: targets, Payload: payload}
}

// Sink is the one method modules need from the router. Dispatch never fails
// from the caller's point of view: persistence has already happened and
// delivery problems must not roll it back.
type Sink interface {
	Dispatch(ctx context.Context, ev *Event)
}
