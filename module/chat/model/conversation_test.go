package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectMemberKeyIsOrderInsensitive(t *testing.T) {
	assert.Equal(t, DirectMemberKey("alice", "bob"), DirectMemberKey("bob", "alice"))
	assert.Equal(t, "alice:bob", DirectMemberKey("bob", "alice"))
}

func TestMembershipHelpers(t *testing.T) {
	conv := &Conversation{
		Members: []Member{
			{UserID: "alice", Role: RoleAdmin},
			{UserID: "bob", Role: RoleMember},
			{UserID: "carol", Role: RoleMember},
		},
	}
	assert.True(t, conv.HasMember("bob"))
	assert.False(t, conv.HasMember("mallory"))
	assert.True(t, conv.IsAdmin("alice"))
	assert.False(t, conv.IsAdmin("bob"))
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, conv.MemberIDs())
	assert.ElementsMatch(t, []string{"bob", "carol"}, conv.OtherMemberIDs("alice"))
}
