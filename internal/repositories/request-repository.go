package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"renamewiki-system/internal/entities"
	"renamewiki-system/pkg/constants"
	apperrors "renamewiki-system/pkg/errors"
	"renamewiki-system/pkg/utils"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RequestRepositoryInterface interface {
	CreateRequest(ctx context.Context, q Querier, req *entities.RenameRequest) (int, error)
	FindRequest(ctx context.Context, q Querier, id int) (*entities.RenameRequest, error)
	FindRequestForUpdate(ctx context.Context, tx pgx.Tx, id int) (*entities.RenameRequest, error)
	ExistsActiveForWiki(ctx context.Context, oldWiki string) (bool, error)

	SetStatus(ctx context.Context, q Querier, id int, status constants.RequestStatus) error
	SetPrivate(ctx context.Context, q Querier, id int, private bool) error
	SetLocked(ctx context.Context, q Querier, id int, locked bool) error
	SetOldWiki(ctx context.Context, q Querier, id int, oldWiki string) error
	SetNewWiki(ctx context.Context, q Querier, id int, newWiki string) error
	SetReason(ctx context.Context, q Querier, id int, reason string) error

	ListRequests(ctx context.Context, params utils.QueryParams, viewerID int, canViewPrivate bool) ([]entities.RenameRequest, uint64, error)
}

type RequestRepository struct {
	storage *pgxpool.Pool
}

func NewRequestRepository(storage *pgxpool.Pool) RequestRepositoryInterface {
	return &RequestRepository{
		storage: storage,
	}
}

const requestColumns = `
	r.id, r.old_wiki, r.new_wiki, r.reason, r.private, r.status,
	r.requester_id, r.locked, r.created_at, r.updated_at, u.username`

func scanRequest(row pgx.Row) (*entities.RenameRequest, error) {
	var req entities.RenameRequest
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&req.ID, &req.OldWiki, &req.NewWiki, &req.Reason, &req.Private, &req.Status,
		&req.RequesterID, &req.Locked, &createdAt, &updatedAt, &req.RequesterName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	req.CreatedAt = &createdAt
	req.UpdatedAt = &updatedAt
	return &req, nil
}

func (r *RequestRepository) CreateRequest(ctx context.Context, q Querier, req *entities.RenameRequest) (int, error) {
	query := `
		INSERT INTO renamewiki_requests (old_wiki, new_wiki, reason, private, status, requester_id, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, NOW(), NOW())
		RETURNING id`

	var newID int
	err := q.QueryRow(ctx, query,
		req.OldWiki, req.NewWiki, req.Reason, req.Private, req.Status, req.RequesterID,
	).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return newID, nil
}

func (r *RequestRepository) FindRequest(ctx context.Context, q Querier, id int) (*entities.RenameRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM renamewiki_requests r
		JOIN users u ON r.requester_id = u.id
		WHERE r.id = $1`

	return scanRequest(q.QueryRow(ctx, query, id))
}

// FindRequestForUpdate блокирует строку заявки до конца транзакции, чтобы
// параллельные обработчики не перезаписывали изменения друг друга.
func (r *RequestRepository) FindRequestForUpdate(ctx context.Context, tx pgx.Tx, id int) (*entities.RenameRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM renamewiki_requests r
		JOIN users u ON r.requester_id = u.id
		WHERE r.id = $1
		FOR UPDATE OF r`

	return scanRequest(tx.QueryRow(ctx, query, id))
}

// ExistsActiveForWiki проверяет, есть ли по этой вики незакрытая заявка.
func (r *RequestRepository) ExistsActiveForWiki(ctx context.Context, oldWiki string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM renamewiki_requests
			WHERE old_wiki = $1 AND status NOT IN ($2, $3, $4)
		)`

	var exists bool
	err := r.storage.QueryRow(ctx, query, oldWiki,
		constants.StatusComplete, constants.StatusDeclined, constants.StatusFailed,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки активных заявок: %w", err)
	}
	return exists, nil
}

func (r *RequestRepository) setField(ctx context.Context, q Querier, id int, field string, value interface{}) error {
	query := fmt.Sprintf(`UPDATE renamewiki_requests SET %s = $1, updated_at = NOW() WHERE id = $2`, field)

	result, err := q.Exec(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("ошибка обновления поля %s заявки: %w", field, err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *RequestRepository) SetStatus(ctx context.Context, q Querier, id int, status constants.RequestStatus) error {
	return r.setField(ctx, q, id, "status", status)
}

func (r *RequestRepository) SetPrivate(ctx context.Context, q Querier, id int, private bool) error {
	return r.setField(ctx, q, id, "private", private)
}

func (r *RequestRepository) SetLocked(ctx context.Context, q Querier, id int, locked bool) error {
	return r.setField(ctx, q, id, "locked", locked)
}

func (r *RequestRepository) SetOldWiki(ctx context.Context, q Querier, id int, oldWiki string) error {
	return r.setField(ctx, q, id, "old_wiki", oldWiki)
}

func (r *RequestRepository) SetNewWiki(ctx context.Context, q Querier, id int, newWiki string) error {
	return r.setField(ctx, q, id, "new_wiki", newWiki)
}

func (r *RequestRepository) SetReason(ctx context.Context, q Querier, id int, reason string) error {
	return r.setField(ctx, q, id, "reason", reason)
}

var allowedListFilters = map[string]string{
	"status":    "r.status",
	"requester": "u.username",
	"old_wiki":  "r.old_wiki",
	"new_wiki":  "r.new_wiki",
}

var allowedSortColumns = map[string]string{
	"id":         "r.id",
	"created_at": "r.created_at",
	"old_wiki":   "r.old_wiki",
	"status":     "r.status",
}

// ListRequests возвращает страницу очереди заявок. Приватные заявки видны
// только их авторам и пользователям с соответствующим правом.
func (r *RequestRepository) ListRequests(ctx context.Context, params utils.QueryParams, viewerID int, canViewPrivate bool) ([]entities.RenameRequest, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	base := psql.Select().
		From("renamewiki_requests r").
		Join("users u ON r.requester_id = u.id")

	if !canViewPrivate {
		base = base.Where(sq.Or{
			sq.Eq{"r.private": false},
			sq.Eq{"r.requester_id": viewerID},
		})
	}

	for key, value := range params.Filters {
		column, ok := allowedListFilters[key]
		if !ok {
			continue
		}
		base = base.Where(sq.Eq{column: value})
	}

	countQuery, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки запроса подсчета: %w", err)
	}

	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета заявок: %w", err)
	}

	sortColumn, ok := allowedSortColumns[params.SortBy]
	if !ok {
		sortColumn = "r.id"
	}
	sortOrder := "ASC"
	if params.SortOrder == "desc" {
		sortOrder = "DESC"
	}

	listQuery, listArgs, err := base.
		Columns(requestColumns).
		OrderBy(sortColumn + " " + sortOrder).
		Limit(params.Limit).
		Offset(params.Offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки запроса списка: %w", err)
	}

	rows, err := r.storage.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	requests := make([]entities.RenameRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования заявки в списке: %w", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
