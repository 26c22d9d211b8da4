package room

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	roomRedis "github.com/couchsync/server/internal/repository/room/redis"
	"github.com/couchsync/server/internal/repository/session/inmemory"
)

func newTestService(t *testing.T, cfg *Config) *service {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rc.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roomRepo := roomRedis.NewRepo(rc, time.Hour, logger)
	sessionRepo := inmemory.NewRepo(logger)

	return NewService(roomRepo, sessionRepo, cfg, logger)
}

func defaultConfig() *Config {
	return &Config{
		Secret:          "test-secret",
		TokenTTL:        time.Hour,
		MembersLimit:    10,
		AutoCreateRooms: true,
	}
}

func TestIssueAndParseToken(t *testing.T) {
	s := newTestService(t, defaultConfig())

	resp, err := s.IssueGuestToken(context.Background(), &IssueGuestTokenParams{Username: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.UserId)

	claims, err := s.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, resp.UserId, claims.Subject)
}

func TestParseTokenRejectsForgedToken(t *testing.T) {
	s := newTestService(t, defaultConfig())

	otherCfg := defaultConfig()
	otherCfg.Secret = "other-secret"
	other := newTestService(t, otherCfg)

	resp, err := other.IssueGuestToken(context.Background(), &IssueGuestTokenParams{Username: "mallory"})
	require.NoError(t, err)

	_, err = s.ParseToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateRoom(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	resp, err := s.CreateRoom(ctx, &CreateRoomParams{Code: "MOVIES", Name: "movie night", OwnerId: "alice-id"})
	require.NoError(t, err)
	assert.Equal(t, "MOVIES", resp.RoomId)
	assert.Equal(t, "movie night", resp.Name)

	_, err = s.CreateRoom(ctx, &CreateRoomParams{Code: "MOVIES", OwnerId: "bob-id"})
	assert.ErrorIs(t, err, ErrRoomAlreadyExists)

	generated, err := s.CreateRoom(ctx, &CreateRoomParams{OwnerId: "alice-id"})
	require.NoError(t, err)
	assert.Len(t, generated.RoomId, roomCodeLength)
	assert.Equal(t, generated.RoomId, generated.Name)
}

func TestJoinRoomAutoCreates(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	aliceResp, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)
	assert.False(t, aliceResp.AlreadyMember)
	assert.True(t, aliceResp.SubscribeRoom)
	assert.False(t, aliceResp.PersistFailed)
	require.Len(t, aliceResp.Members, 1)
	assert.Equal(t, "alice", aliceResp.Members[0].Username)

	bobResp, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "bob-id", Username: "bob"})
	require.NoError(t, err)
	assert.False(t, bobResp.AlreadyMember)
	assert.False(t, bobResp.SubscribeRoom)
	require.Len(t, bobResp.Members, 2)

	usernames := []string{bobResp.Members[0].Username, bobResp.Members[1].Username}
	assert.ElementsMatch(t, []string{"alice", "bob"}, usernames)
}

func TestJoinRoomIdempotent(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)

	resp, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)
	assert.True(t, resp.AlreadyMember)
	assert.False(t, resp.SubscribeRoom)
	assert.Len(t, resp.Members, 1, "re-joining must not duplicate the roster entry")
}

func TestJoinRoomWithoutAutoCreate(t *testing.T) {
	cfg := defaultConfig()
	cfg.AutoCreateRooms = false
	s := newTestService(t, cfg)
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "NOPE", MemberId: "alice-id", Username: "alice"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = s.CreateRoom(ctx, &CreateRoomParams{Code: "REAL", OwnerId: "alice-id"})
	require.NoError(t, err)

	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: "REAL", MemberId: "alice-id", Username: "alice"})
	assert.NoError(t, err)
}

func TestJoinRoomFull(t *testing.T) {
	cfg := defaultConfig()
	cfg.MembersLimit = 1
	s := newTestService(t, cfg)
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "TINY", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)

	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: "TINY", MemberId: "bob-id", Username: "bob"})
	assert.ErrorIs(t, err, ErrRoomFull)

	// counted members may still re-join
	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: "TINY", MemberId: "alice-id", Username: "alice"})
	assert.NoError(t, err)
}

func TestJoinSecondRoomRejected(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "FIRST", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)

	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: "SECOND", MemberId: "alice-id", Username: "alice"})
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

func TestLeaveRoom(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "bob-id", Username: "bob"})
	require.NoError(t, err)

	resp, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)
	assert.False(t, resp.UnsubscribeRoom)
	require.Len(t, resp.Members, 1)
	assert.Equal(t, "bob", resp.Members[0].Username)

	// leaving twice is a no-op, not an error
	_, err = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	assert.NoError(t, err)

	last, err := s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: "ABCD", MemberId: "bob-id", Username: "bob"})
	require.NoError(t, err)
	assert.True(t, last.UnsubscribeRoom)

	_, err = s.LeaveRoom(ctx, &LeaveRoomParams{RoomId: "GHOST", MemberId: "alice-id", Username: "alice"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDisconnectImpliesLeave(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "bob-id", Username: "bob"})
	require.NoError(t, err)

	resp, err := s.DisconnectMember(ctx, &DisconnectMemberParams{MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)
	assert.True(t, resp.WasInRoom)
	assert.Equal(t, "ABCD", resp.RoomId)
	require.Len(t, resp.Members, 1)
	assert.Equal(t, "bob", resp.Members[0].Username)

	// disconnecting a member that never joined is quiet
	idle, err := s.DisconnectMember(ctx, &DisconnectMemberParams{MemberId: "carol-id", Username: "carol"})
	require.NoError(t, err)
	assert.False(t, idle.WasInRoom)
}

func TestSendMessage(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)

	resp, err := s.SendMessage(ctx, &SendMessageParams{
		RoomId:    "ABCD",
		SenderId:  "alice-id",
		Username:  "alice",
		MessageId: "client-msg-1",
		Text:      "hello",
		Timestamp: 1700000000000,
	})
	require.NoError(t, err)
	assert.Equal(t, "client-msg-1", resp.Message.Id)
	assert.Equal(t, "alice", resp.Message.User)
	assert.Equal(t, "hello", resp.Message.Text)
	assert.Equal(t, int64(1700000000000), resp.Message.Timestamp)

	generated, err := s.SendMessage(ctx, &SendMessageParams{
		RoomId:   "ABCD",
		SenderId: "alice-id",
		Username: "alice",
		Text:     "no id supplied",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.Message.Id)
	assert.NotZero(t, generated.Message.Timestamp)
}

func TestSendMessageRequiresMembership(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.SendMessage(ctx, &SendMessageParams{
		RoomId:   "ABCD",
		SenderId: "stranger-id",
		Username: "stranger",
		Text:     "hi",
	})
	assert.ErrorIs(t, err, ErrNotRoomMember)
}

func TestPlaybackStateConvergence(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)

	selectResp, err := s.SelectMedia(ctx, &SelectMediaParams{
		RoomId:   "ABCD",
		SenderId: "alice-id",
		MediaRef: "https://example.com/movie",
	})
	require.NoError(t, err)
	assert.False(t, selectResp.Player.IsPlaying)
	assert.Zero(t, selectResp.Player.Position)
	assert.Equal(t, float64(1), selectResp.Player.Speed)

	_, err = s.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{
		RoomId:    "ABCD",
		SenderId:  "alice-id",
		MediaRef:  "https://example.com/movie",
		IsPlaying: true,
		Position:  42.5,
		Speed:     1.5,
	})
	require.NoError(t, err)

	// a late joiner picks up the last reported state
	bobResp, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "bob-id", Username: "bob"})
	require.NoError(t, err)
	require.NotNil(t, bobResp.Player)
	assert.Equal(t, "https://example.com/movie", bobResp.Player.MediaRef)
	assert.True(t, bobResp.Player.IsPlaying)
	assert.Equal(t, 42.5, bobResp.Player.Position)
	assert.Equal(t, 1.5, bobResp.Player.Speed)

	stateResp, err := s.GetPlaybackState(ctx, &GetPlaybackStateParams{RoomId: "ABCD", SenderId: "bob-id"})
	require.NoError(t, err)
	require.NotNil(t, stateResp.Player)
	assert.Equal(t, 42.5, stateResp.Player.Position)
}

func TestSeekBeforeAnyReport(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)

	seekResp, err := s.Seek(ctx, &SeekParams{
		RoomId:   "ABCD",
		SenderId: "alice-id",
		MediaRef: "https://example.com/movie",
		Position: 120,
	})
	require.NoError(t, err)
	assert.False(t, seekResp.PersistFailed)

	stateResp, err := s.GetPlaybackState(ctx, &GetPlaybackStateParams{RoomId: "ABCD", SenderId: "alice-id"})
	require.NoError(t, err)
	require.NotNil(t, stateResp.Player)
	assert.Equal(t, float64(120), stateResp.Player.Position)
	assert.False(t, stateResp.Player.IsPlaying)
}

func TestChangeSpeed(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.JoinRoom(ctx, &JoinRoomParams{RoomId: "ABCD", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)

	// speed change before any media is selected is dropped quietly
	resp, err := s.ChangeSpeed(ctx, &ChangeSpeedParams{RoomId: "ABCD", SenderId: "alice-id", Speed: 2})
	require.NoError(t, err)
	assert.False(t, resp.PersistFailed)

	_, err = s.SelectMedia(ctx, &SelectMediaParams{RoomId: "ABCD", SenderId: "alice-id", MediaRef: "https://example.com/movie"})
	require.NoError(t, err)

	_, err = s.ChangeSpeed(ctx, &ChangeSpeedParams{RoomId: "ABCD", SenderId: "alice-id", Speed: 2})
	require.NoError(t, err)

	stateResp, err := s.GetPlaybackState(ctx, &GetPlaybackStateParams{RoomId: "ABCD", SenderId: "alice-id"})
	require.NoError(t, err)
	require.NotNil(t, stateResp.Player)
	assert.Equal(t, float64(2), stateResp.Player.Speed)
}

func TestPlaybackRequiresMembership(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.UpdatePlaybackState(ctx, &UpdatePlaybackStateParams{RoomId: "ABCD", SenderId: "stranger-id"})
	assert.ErrorIs(t, err, ErrNotRoomMember)

	_, err = s.Seek(ctx, &SeekParams{RoomId: "ABCD", SenderId: "stranger-id"})
	assert.ErrorIs(t, err, ErrNotRoomMember)

	_, err = s.GetPlaybackState(ctx, &GetPlaybackStateParams{RoomId: "ABCD", SenderId: "stranger-id"})
	assert.ErrorIs(t, err, ErrNotRoomMember)
}

func TestGetRoomSnapshot(t *testing.T) {
	s := newTestService(t, defaultConfig())
	ctx := context.Background()

	_, err := s.GetRoomSnapshot(ctx, "GHOST")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = s.CreateRoom(ctx, &CreateRoomParams{Code: "MOVIES", Name: "movie night", OwnerId: "alice-id"})
	require.NoError(t, err)
	_, err = s.JoinRoom(ctx, &JoinRoomParams{RoomId: "MOVIES", MemberId: "alice-id", Username: "alice"})
	require.NoError(t, err)

	snapshot, err := s.GetRoomSnapshot(ctx, "MOVIES")
	require.NoError(t, err)
	assert.Equal(t, "MOVIES", snapshot.RoomId)
	assert.Equal(t, "movie night", snapshot.Name)
	require.Len(t, snapshot.Members, 1)
	assert.Nil(t, snapshot.Player)
}
