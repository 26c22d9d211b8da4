package controller

import "context"

type contextKey int

const (
	memberIdCtxKey contextKey = iota
	usernameCtxKey
)

func (c controller) getMemberIdFromCtx(ctx context.Context) string {
	memberId, ok := ctx.Value(memberIdCtxKey).(string)
	if !ok {
		return ""
	}

	return memberId
}

func (c controller) getUsernameFromCtx(ctx context.Context) string {
	username, ok := ctx.Value(usernameCtxKey).(string)
	if !ok {
		return ""
	}

	return username
}
