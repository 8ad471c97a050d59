package events

import (
	"renamewiki-system/pkg/constants"
)

// RequestCreatedEvent возникает после успешной подачи заявки.
type RequestCreatedEvent struct {
	RequestID     int
	OldWiki       string
	NewWiki       string
	Private       bool
	RequesterID   int
	RequesterName string
}

func (e RequestCreatedEvent) Name() string {
	return "renamewiki.request.created"
}

// RequestCommentedEvent возникает после добавления комментария к заявке.
type RequestCommentedEvent struct {
	RequestID int
	ActorID   *int
	Actor     string
	Comment   string
	Private   bool
}

func (e RequestCommentedEvent) Name() string {
	return "renamewiki.request.commented"
}

// RequestStatusChangedEvent возникает после смены статуса заявки.
type RequestStatusChangedEvent struct {
	RequestID int
	ActorID   *int
	Actor     string
	OldStatus constants.RequestStatus
	NewStatus constants.RequestStatus
	Private   bool
}

func (e RequestStatusChangedEvent) Name() string {
	return "renamewiki.request.status_changed"
}

// RenameFailedEvent возникает, когда фоновое переименование завершилось с ошибкой.
type RenameFailedEvent struct {
	RequestID int
	OldWiki   string
	NewWiki   string
	Reason    string
}

func (e RenameFailedEvent) Name() string {
	return "renamewiki.rename.failed"
}
