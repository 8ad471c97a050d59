package utils

import (
	"context"

	"renamewiki-system/pkg/contextkeys"
	apperrors "renamewiki-system/pkg/errors"
)

func GetUserIDFromCtx(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(int)
	if !ok || userID == 0 {
		return 0, apperrors.ErrInvalidUserID
	}
	return userID, nil
}

func GetSessionIDFromCtx(ctx context.Context) string {
	sessionID, _ := ctx.Value(contextkeys.SessionIDKey).(string)
	return sessionID
}

func GetCapabilitiesFromCtx(ctx context.Context) map[string]bool {
	caps, ok := ctx.Value(contextkeys.UserCapabilitiesKey).(map[string]bool)
	if !ok {
		return map[string]bool{}
	}
	return caps
}
