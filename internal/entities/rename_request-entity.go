package entities

import (
	"renamewiki-system/pkg/constants"
	"renamewiki-system/pkg/types"
)

// RenameRequest - заявка на переименование вики.
type RenameRequest struct {
	ID          int                     `json:"id" db:"id"`
	OldWiki     string                  `json:"old_wiki" db:"old_wiki"`
	NewWiki     string                  `json:"new_wiki" db:"new_wiki"`
	Reason      string                  `json:"reason" db:"reason"`
	Private     bool                    `json:"private" db:"private"`
	Status      constants.RequestStatus `json:"status" db:"status"`
	RequesterID int                     `json:"requester_id" db:"requester_id"`

	// Locked запрещает любые действия над заявкой до снятия блокировки.
	Locked bool `json:"locked" db:"locked"`

	// RequesterName заполняется join-ом при чтении.
	RequesterName string `json:"requester_name" db:"requester_name"`

	types.BaseEntity
}
