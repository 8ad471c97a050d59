package entities

import (
	"time"
)

// RequestComment - комментарий к заявке. Actor хранит имя автора на момент
// публикации: для машинных комментариев это одно из зарезервированных имён,
// user_id в этом случае пустой.
type RequestComment struct {
	ID        int       `json:"id" db:"id"`
	RequestID int       `json:"request_id" db:"request_id"`
	UserID    *int      `json:"user_id" db:"user_id"`
	Actor     string    `json:"actor" db:"actor"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
