package constants

// SystemActor - зарезервированные служебные учётные записи, от имени которых
// создаются автоматические комментарии. Уведомления о таких комментариях
// не рассылаются, иначе каждое изменение статуса порождало бы двойную рассылку.
type SystemActor string

const (
	ActorExtension          SystemActor = "RenameWiki Extension"
	ActorStatusUpdate       SystemActor = "RenameWiki Status Update"
	ActorLegacyExtension    SystemActor = "RequestRenameWiki Extension"
	ActorLegacyStatusUpdate SystemActor = "RequestRenameWiki Status Update"
)

func (a SystemActor) String() string {
	return string(a)
}

var systemActors = []SystemActor{
	ActorExtension,
	ActorStatusUpdate,
	ActorLegacyExtension,
	ActorLegacyStatusUpdate,
}

// IsSystemActor проверяет имя пользователя по списку служебных учётных записей.
func IsSystemActor(username string) bool {
	for _, a := range systemActors {
		if username == string(a) {
			return true
		}
	}
	return false
}
