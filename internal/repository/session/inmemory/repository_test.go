package inmemory

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchsync/server/internal/repository/session"
)

func newTestRepo() *repo {
	return NewRepo(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConnLifecycle(t *testing.T) {
	r := newTestRepo()
	conn := &session.Conn{}

	require.NoError(t, r.AddConn(conn, "alice-id"))
	assert.ErrorIs(t, r.AddConn(&session.Conn{}, "alice-id"), session.ErrAlreadyExists)
	assert.ErrorIs(t, r.AddConn(conn, "bob-id"), session.ErrAlreadyExists)

	got, err := r.GetConn("alice-id")
	require.NoError(t, err)
	assert.Same(t, conn, got)

	memberId, err := r.GetMemberId(conn)
	require.NoError(t, err)
	assert.Equal(t, "alice-id", memberId)

	removed, err := r.RemoveConn("alice-id")
	require.NoError(t, err)
	assert.Same(t, conn, removed)

	_, err = r.GetConn("alice-id")
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = r.RemoveConn("alice-id")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRoomMembership(t *testing.T) {
	r := newTestRepo()

	added, opened := r.AddMemberToRoom("ABCD", "alice-id")
	assert.True(t, added)
	assert.True(t, opened)

	added, opened = r.AddMemberToRoom("ABCD", "bob-id")
	assert.True(t, added)
	assert.False(t, opened)

	added, opened = r.AddMemberToRoom("ABCD", "alice-id")
	assert.False(t, added)
	assert.False(t, opened)

	assert.True(t, r.IsMemberInRoom("ABCD", "alice-id"))
	assert.False(t, r.IsMemberInRoom("ABCD", "carol-id"))
	assert.False(t, r.IsMemberInRoom("WXYZ", "alice-id"))

	roomId, err := r.GetMemberRoomId("alice-id")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", roomId)

	assert.ElementsMatch(t, []string{"alice-id", "bob-id"}, r.GetRoomMemberIds("ABCD"))
	assert.Empty(t, r.GetRoomMemberIds("WXYZ"))
}

func TestRoomEviction(t *testing.T) {
	r := newTestRepo()

	r.AddMemberToRoom("ABCD", "alice-id")
	r.AddMemberToRoom("ABCD", "bob-id")

	removed, closed := r.RemoveMemberFromRoom("ABCD", "alice-id")
	assert.True(t, removed)
	assert.False(t, closed)

	_, err := r.GetMemberRoomId("alice-id")
	assert.ErrorIs(t, err, session.ErrNotFound)

	removed, closed = r.RemoveMemberFromRoom("ABCD", "alice-id")
	assert.False(t, removed)
	assert.False(t, closed)

	removed, closed = r.RemoveMemberFromRoom("ABCD", "bob-id")
	assert.True(t, removed)
	assert.True(t, closed)

	assert.Empty(t, r.GetRoomMemberIds("ABCD"))

	removed, closed = r.RemoveMemberFromRoom("GHOST", "alice-id")
	assert.False(t, removed)
	assert.False(t, closed)
}
