package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"renamewiki-system/internal/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type LogRepositoryInterface interface {
	CreateLogEntry(ctx context.Context, q Querier, entry *entities.AuditLogEntry) error
	FindByRequestID(ctx context.Context, requestID int, includePrivate bool) ([]entities.AuditLogEntry, error)
}

type LogRepository struct {
	storage *pgxpool.Pool
}

func NewLogRepository(storage *pgxpool.Pool) LogRepositoryInterface {
	return &LogRepository{
		storage: storage,
	}
}

func (r *LogRepository) CreateLogEntry(ctx context.Context, q Querier, entry *entities.AuditLogEntry) error {
	params, err := json.Marshal(entry.Params)
	if err != nil {
		return fmt.Errorf("ошибка сериализации параметров записи журнала: %w", err)
	}

	query := `
		INSERT INTO renamewiki_request_log (request_id, log_type, action, actor, user_id, target, params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err = q.Exec(ctx, query,
		entry.RequestID, entry.LogType, entry.Action, entry.Actor, entry.UserID, entry.Target, params,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания записи журнала: %w", err)
	}
	return nil
}

func (r *LogRepository) FindByRequestID(ctx context.Context, requestID int, includePrivate bool) ([]entities.AuditLogEntry, error) {
	query := `
		SELECT id, request_id, log_type, action, actor, user_id, target, params, created_at
		FROM renamewiki_request_log
		WHERE request_id = $1`
	args := []interface{}{requestID}

	if !includePrivate {
		query += ` AND log_type = $2`
		args = append(args, "renamewiki")
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе журнала: %w", err)
	}
	defer rows.Close()

	entries := make([]entities.AuditLogEntry, 0)
	for rows.Next() {
		var e entities.AuditLogEntry
		var rawParams []byte
		if err := rows.Scan(&e.ID, &e.RequestID, &e.LogType, &e.Action, &e.Actor, &e.UserID, &e.Target, &rawParams, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании записи журнала: %w", err)
		}
		if len(rawParams) > 0 {
			if err := json.Unmarshal(rawParams, &e.Params); err != nil {
				return nil, fmt.Errorf("ошибка разбора параметров записи журнала: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
