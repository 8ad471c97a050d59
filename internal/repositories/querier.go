package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier удовлетворяется и пулом, и транзакцией pgx.Tx, поэтому методы
// репозиториев работают одинаково внутри и вне атомарной секции.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Querier экспортируется для сервисного слоя: менеджер заявки передает
// сюда либо активную транзакцию, либо пул.
type Querier = querier

// TxBeginner отвязывает сервисы от *pgxpool.Pool, чтобы в тестах можно
// было подставить фальшивое начало транзакции.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Database объединяет прямые запросы и открытие транзакций.
// Ему удовлетворяет *pgxpool.Pool.
type Database interface {
	TxBeginner
	querier
}
