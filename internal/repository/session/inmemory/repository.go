package inmemory

import (
	"log/slog"
	"sync"

	"github.com/couchsync/server/internal/repository/session"
)

// repo is the process-local session directory: which members are connected
// to this process, which room each one is in, and the live member set per
// room. It never outlives the process; persisted room data lives in redis.
type repo struct {
	logger     *slog.Logger
	mu         sync.RWMutex
	conns      map[string]*session.Conn     // member id -> connection
	memberIds  map[*session.Conn]string     // connection -> member id
	memberRoom map[string]string            // member id -> room id
	rooms      map[string]map[string]struct{} // room id -> live member set
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		logger:     logger,
		conns:      make(map[string]*session.Conn),
		memberIds:  make(map[*session.Conn]string),
		memberRoom: make(map[string]string),
		rooms:      make(map[string]map[string]struct{}),
	}
}

func (r *repo) AddConn(conn *session.Conn, memberId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[memberId]; ok {
		return session.ErrAlreadyExists
	}
	if _, ok := r.memberIds[conn]; ok {
		return session.ErrAlreadyExists
	}

	r.conns[memberId] = conn
	r.memberIds[conn] = memberId

	return nil
}

func (r *repo) RemoveConn(memberId string) (*session.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[memberId]
	if !ok {
		return nil, session.ErrNotFound
	}

	delete(r.conns, memberId)
	delete(r.memberIds, conn)

	return conn, nil
}

func (r *repo) GetConn(memberId string) (*session.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[memberId]
	if !ok {
		return nil, session.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetMemberId(conn *session.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	memberId, ok := r.memberIds[conn]
	if !ok {
		return "", session.ErrNotFound
	}

	return memberId, nil
}

// AddMemberToRoom places the member in the room's live set. added reports
// whether the member was not already present, opened whether this created
// the room's live entry on this process.
func (r *repo) AddMemberToRoom(roomId, memberId string) (added, opened bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomId]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomId] = members
		opened = true
	}

	if _, ok := members[memberId]; !ok {
		members[memberId] = struct{}{}
		added = true
	}

	r.memberRoom[memberId] = roomId

	return added, opened
}

// RemoveMemberFromRoom drops the member from the room's live set. The live
// entry is evicted once its member set empties; closed reports that.
func (r *repo) RemoveMemberFromRoom(roomId, memberId string) (removed, closed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.memberRoom[memberId] == roomId {
		delete(r.memberRoom, memberId)
	}

	members, ok := r.rooms[roomId]
	if !ok {
		return false, false
	}

	if _, ok := members[memberId]; ok {
		delete(members, memberId)
		removed = true
	}

	if len(members) == 0 {
		delete(r.rooms, roomId)
		closed = true
	}

	return removed, closed
}

func (r *repo) GetMemberRoomId(memberId string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomId, ok := r.memberRoom[memberId]
	if !ok {
		return "", session.ErrNotFound
	}

	return roomId, nil
}

func (r *repo) GetRoomMemberIds(roomId string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomId]
	if !ok {
		return nil
	}

	memberIds := make([]string, 0, len(members))
	for memberId := range members {
		memberIds = append(memberIds, memberId)
	}

	return memberIds
}

func (r *repo) IsMemberInRoom(roomId, memberId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomId]
	if !ok {
		return false
	}

	_, ok = members[memberId]

	return ok
}
