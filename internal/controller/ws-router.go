package controller

import (
	"github.com/couchsync/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.wsRequestIdMw())
	mux.Use(c.wsTimeoutMw())
	mux.Use(c.wsLoggingMw())
	mux.OnError(c.handleWSError)

	wsrouter.Handle(mux, "alive", c.handleAlive)

	// membership
	wsrouter.Handle(mux, "joinRoom", c.handleJoinRoom)
	wsrouter.Handle(mux, "leaveRoom", c.handleLeaveRoom)

	// chat
	wsrouter.Handle(mux, "sendMessage", c.handleSendMessage)

	// playback
	wsrouter.Handle(mux, "video-selected", c.handleSelectMedia)
	wsrouter.Handle(mux, "vid-state", c.handleVidState)
	wsrouter.Handle(mux, "progress-bar-clicked", c.handleSeek)
	wsrouter.Handle(mux, "playback-speed-changed", c.handleSpeedChange)
	wsrouter.Handle(mux, "getState", c.handleGetState)

	return mux
}
