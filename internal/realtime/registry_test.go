package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryBindAndUnbind(t *testing.T) {
	r := NewRegistry()
	alice := Binding{SessionID: "s1", ParticipantID: "alice"}
	bob := Binding{SessionID: "s1", ParticipantID: "bob"}

	r.Bind("c1", alice)
	r.Bind("c2", bob)
	r.Bind("c3", alice)

	assert.Equal(t, []string{"c1", "c2", "c3"}, r.Members("s1"))
	assert.Equal(t, []string{"c1", "c3"}, r.ConnectionsOf(alice))
	assert.Equal(t, 3, r.Count())

	b, ok := r.Unbind("c1")
	assert.True(t, ok)
	assert.Equal(t, alice, b)
	assert.Equal(t, []string{"c3"}, r.ConnectionsOf(alice))

	_, ok = r.Unbind("c1")
	assert.False(t, ok, "second unbind is a no-op")
}

func TestRegistryRebindMovesConnection(t *testing.T) {
	r := NewRegistry()
	r.Bind("c1", Binding{SessionID: "s1", ParticipantID: "p"})
	r.Bind("c1", Binding{SessionID: "s2", ParticipantID: "q"})

	assert.Empty(t, r.Members("s1"))
	assert.Equal(t, []string{"c1"}, r.Members("s2"))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryDropSession(t *testing.T) {
	r := NewRegistry()
	r.Bind("c1", Binding{SessionID: "s1", ParticipantID: "p"})
	r.Bind("c2", Binding{SessionID: "s1", ParticipantID: "q"})
	r.Bind("c3", Binding{SessionID: "s2", ParticipantID: "r"})

	assert.Equal(t, []string{"c1", "c2"}, r.DropSession("s1"))
	assert.Empty(t, r.Members("s1"))
	_, ok := r.Lookup("c1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())
	assert.Nil(t, r.DropSession("missing"))
}
