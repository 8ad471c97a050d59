package entities

import (
	"database/sql"

	"renamewiki-system/pkg/types"
)

type User struct {
	ID       int    `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`

	Password string `json:"-" db:"password"`

	RoleID int `json:"role_id" db:"role_id"`

	// Locked - учётная запись заблокирована на уровне платформы.
	// Заявки таких пользователей отображаются как отклонённые.
	Locked bool `json:"locked" db:"locked"`

	// Blocked - пользователю запрещено подавать и комментировать заявки.
	Blocked bool `json:"blocked" db:"blocked"`

	TelegramChatID sql.NullInt64 `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`

	types.BaseEntity
}

type Role struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
