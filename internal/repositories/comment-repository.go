package repositories

import (
	"context"
	"fmt"

	"renamewiki-system/internal/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CommentRepositoryInterface interface {
	CreateComment(ctx context.Context, q Querier, comment *entities.RequestComment) (int, error)
	FindByRequestID(ctx context.Context, requestID int) ([]entities.RequestComment, error)
	FindInvolvedUserIDs(ctx context.Context, q Querier, requestID int) ([]int, error)
}

type CommentRepository struct {
	storage *pgxpool.Pool
}

func NewCommentRepository(storage *pgxpool.Pool) CommentRepositoryInterface {
	return &CommentRepository{
		storage: storage,
	}
}

func (r *CommentRepository) CreateComment(ctx context.Context, q Querier, comment *entities.RequestComment) (int, error) {
	query := `
		INSERT INTO renamewiki_request_comments (request_id, user_id, actor, comment, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id`

	var newID int
	err := q.QueryRow(ctx, query,
		comment.RequestID, comment.UserID, comment.Actor, comment.Comment,
	).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания комментария: %w", err)
	}
	return newID, nil
}

// FindByRequestID отдает комментарии в хронологическом порядке.
func (r *CommentRepository) FindByRequestID(ctx context.Context, requestID int) ([]entities.RequestComment, error) {
	query := `
		SELECT id, request_id, user_id, actor, comment, created_at
		FROM renamewiki_request_comments
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.storage.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе комментариев: %w", err)
	}
	defer rows.Close()

	comments := make([]entities.RequestComment, 0)
	for rows.Next() {
		var c entities.RequestComment
		if err := rows.Scan(&c.ID, &c.RequestID, &c.UserID, &c.Actor, &c.Comment, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании комментария: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// FindInvolvedUserIDs возвращает уникальные идентификаторы реальных
// пользователей, оставлявших комментарии к заявке. Машинные комментарии
// (user_id IS NULL) не учитываются.
func (r *CommentRepository) FindInvolvedUserIDs(ctx context.Context, q Querier, requestID int) ([]int, error) {
	query := `
		SELECT DISTINCT user_id
		FROM renamewiki_request_comments
		WHERE request_id = $1 AND user_id IS NOT NULL`

	rows, err := q.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе участников заявки: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
