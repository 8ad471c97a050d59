package services

import "context"

// JobQueueInterface ставит фоновое переименование в очередь. Вместе с заявкой
// передается имя обработчика, запустившего переименование. Реализация живет
// в пакете jobs.
type JobQueueInterface interface {
	Enqueue(ctx context.Context, requestID int, username string) error
}
