package entities

import "time"

// AuditLogEntry - запись публичного журнала действий по заявке.
// LogType равен "renamewikiprivate" для приватных заявок, иначе "renamewiki".
type AuditLogEntry struct {
	ID        int               `json:"id" db:"id"`
	RequestID int               `json:"request_id" db:"request_id"`
	LogType   string            `json:"log_type" db:"log_type"`
	Action    string            `json:"action" db:"action"`
	Actor     string            `json:"actor" db:"actor"`
	UserID    *int              `json:"user_id" db:"user_id"`
	Target    string            `json:"target" db:"target"`
	Params    map[string]string `json:"params" db:"params"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
