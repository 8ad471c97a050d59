package dto

import (
	"github.com/aarondl/null/v8"
)

type CreateRenameRequestDTO struct {
	OldWiki string `json:"old_wiki" validate:"required,min=1,max=128"`
	NewWiki string `json:"new_wiki" validate:"required,min=5,max=128"`
	Reason  string `json:"reason" validate:"required,min=3"`
	Private bool   `json:"private"`
}

// HandleRequestActionDTO - единая форма действий над заявкой.
// Поля null.* тройственные: отсутствующее поле не трогает значение.
type HandleRequestActionDTO struct {
	Action string `json:"action" validate:"required,oneof=comment edit handle lock"`

	Comment null.String `json:"comment,omitempty"`

	// Поля режима edit.
	OldWiki null.String `json:"old_wiki,omitempty"`
	NewWiki null.String `json:"new_wiki,omitempty"`
	Reason  null.String `json:"reason,omitempty"`
	Private null.Bool   `json:"private,omitempty"`

	// Поле режима lock: целевое состояние блокировки заявки.
	Locked null.Bool `json:"locked,omitempty"`

	// Поле режима handle: целевой статус (decline, complete, inprogress
	// или submit-start для запуска фонового задания).
	Status null.String `json:"status,omitempty"`
}

type RequestCommentDTO struct {
	ID        int    `json:"id"`
	Actor     string `json:"actor"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"created_at"`
}

type AuditLogEntryDTO struct {
	ID        int               `json:"id"`
	LogType   string            `json:"log_type"`
	Action    string            `json:"action"`
	Actor     string            `json:"actor"`
	Target    string            `json:"target"`
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt string            `json:"created_at"`
}

type RequestResponseDTO struct {
	ID        int    `json:"id"`
	OldWiki   string `json:"old_wiki"`
	NewWiki   string `json:"new_wiki"`
	Reason    string `json:"reason"`
	Private   bool   `json:"private"`
	Status    string `json:"status"`
	Requester string `json:"requester"`
	Locked    bool   `json:"locked"`
	CreatedAt string `json:"created_at"`

	Comments []RequestCommentDTO `json:"comments"`

	// Интерфейсные подсказки для формы обработки.
	CanHandle      bool   `json:"can_handle"`
	CanEdit        bool   `json:"can_edit"`
	PrivacyForced  bool   `json:"privacy_forced"`
	HelpURL        string `json:"help_url,omitempty"`
	InterwikiAlias string `json:"interwiki_alias,omitempty"`
}

type RequestListItemDTO struct {
	ID        int    `json:"id"`
	OldWiki   string `json:"old_wiki"`
	NewWiki   string `json:"new_wiki"`
	Private   bool   `json:"private"`
	Status    string `json:"status"`
	Requester string `json:"requester"`
	CreatedAt string `json:"created_at"`
}

type RequestListResponseDTO struct {
	List       []RequestListItemDTO `json:"list"`
	TotalCount uint64               `json:"total_count"`
}
