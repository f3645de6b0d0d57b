package model

import (
	"sort"
	"strings"
	"time"
)

// Member roles inside a conversation.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type Member struct {
	UserID string `bson:"user_id" json:"userId"`
	Role   string `bson:"role" json:"role"`
}

// Conversation is the canonical record for one member set. For direct
// conversations MemberKey is the sorted user pair and carries a unique index,
// which is what makes find-or-create race-free.
type Conversation struct {
	ConversationID string   `bson:"conversation_id" json:"conversationId"`
	MemberKey      string   `bson:"member_key,omitempty" json:"-"`
	Members        []Member `bson:"members" json:"members"`
	IsGroup        bool     `bson:"is_group" json:"isGroup"`

	GroupName   string `bson:"group_name,omitempty" json:"groupName,omitempty"`
	GroupAvatar string `bson:"group_avatar,omitempty" json:"groupAvatar,omitempty"`
	CreatedBy   string `bson:"created_by,omitempty" json:"createdBy,omitempty"`

	LastMessageID string `bson:"last_message_id,omitempty" json:"lastMessageId,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (*Conversation) TableName() string { return "conversations" }

// DirectMemberKey canonicalizes an unordered user pair, so (A,B) and (B,A)
// address the same conversation.
func DirectMemberKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) MemberIDs() []string {
	out := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		out = append(out, m.UserID)
	}
	return out
}

// OtherMemberIDs returns every member except the given user; the usual event
// target set for conversation updates.
func (c *Conversation) OtherMemberIDs(userID string) []string {
	out := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if m.UserID != userID {
			out = append(out, m.UserID)
		}
	}
	return out
}

func (c *Conversation) IsAdmin(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID && m.Role == RoleAdmin {
			return true
		}
	}
	return false
}
