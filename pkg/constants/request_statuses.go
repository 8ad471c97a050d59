package constants

// RequestStatus - закрытое перечисление статусов заявки на переименование вики.
// Хранится в БД как текст, но в коде никогда не используется как свободная строка.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusStarting   RequestStatus = "starting"
	StatusInProgress RequestStatus = "inprogress"
	StatusComplete   RequestStatus = "complete"
	StatusDeclined   RequestStatus = "declined"
	StatusFailed     RequestStatus = "failed"
)

func (s RequestStatus) String() string {
	return string(s)
}

// IsValid проверяет, что значение пришло из перечисления (например, из запроса клиента).
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusStarting, StatusInProgress, StatusComplete, StatusDeclined, StatusFailed:
		return true
	}
	return false
}

// statusTransitions - явная таблица допустимых переходов.
// complete - терминальный статус без исходящих рёбер.
var statusTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:    {StatusStarting, StatusInProgress, StatusComplete, StatusDeclined},
	StatusDeclined:   {StatusPending, StatusStarting, StatusInProgress, StatusComplete},
	StatusStarting:   {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusComplete, StatusFailed},
	StatusFailed:     {StatusPending, StatusStarting, StatusDeclined},
	StatusComplete:   {},
}

// CanTransitionTo сообщает, есть ли ребро s -> next в таблице переходов.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ConflictStatuses - статусы, в которых заявка закрыта для действий рецензента
// (только просмотр): работа уже запущена или завершена.
var ConflictStatuses = []RequestStatus{
	StatusComplete,
	StatusInProgress,
	StatusStarting,
}

func IsConflictStatus(s RequestStatus) bool {
	for _, c := range ConflictStatuses {
		if s == c {
			return true
		}
	}
	return false
}
