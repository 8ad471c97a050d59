package constants

// Права, управляющие доступом к заявкам на переименование.
const (
	CapabilityRequest     = "request-renamewiki"
	CapabilityHandle      = "handle-renamewiki-requests"
	CapabilityViewPrivate = "view-private-renamewiki-requests"
)

// Типы журнала аудита. Приватные заявки пишутся в отдельный журнал,
// чтобы сам журнал не раскрывал их существование.
const (
	LogTypePublic  = "renamewiki"
	LogTypePrivate = "renamewikiprivate"
)

// Действия журнала аудита.
const (
	LogActionRequest      = "request"
	LogActionStarted      = "started"
	LogActionStatusUpdate = "statusupdate"
)

// Типы уведомлений.
const (
	NotificationNewRequest   = "renamewiki-new-request"
	NotificationComment      = "renamewiki-request-comment"
	NotificationStatusUpdate = "renamewiki-request-status-update"
)
