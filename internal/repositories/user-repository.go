package repositories

import (
	"context"
	"errors"
	"fmt"

	"renamewiki-system/internal/entities"
	apperrors "renamewiki-system/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepositoryInterface interface {
	FindUserByID(ctx context.Context, id int) (*entities.User, error)
	FindUserByLogin(ctx context.Context, login string) (*entities.User, error)
	FindUsersByIDs(ctx context.Context, q Querier, ids []int) ([]entities.User, error)
	FindUsersByNames(ctx context.Context, names []string) ([]entities.User, error)
	GetUserCapabilities(ctx context.Context, userID int) ([]string, error)
}

type UserRepository struct {
	storage *pgxpool.Pool
}

func NewUserRepository(storage *pgxpool.Pool) UserRepositoryInterface {
	return &UserRepository{
		storage: storage,
	}
}

const userColumns = `id, username, email, password, role_id, locked, blocked, telegram_chat_id, created_at, updated_at`

func scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.Password, &u.RoleID,
		&u.Locked, &u.Blocked, &u.TelegramChatID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindUserByID(ctx context.Context, id int) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.storage.QueryRow(ctx, query, id))
}

// FindUserByLogin ищет пользователя по имени или email.
func (r *UserRepository) FindUserByLogin(ctx context.Context, login string) (*entities.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	return scanUser(r.storage.QueryRow(ctx, query, login))
}

func (r *UserRepository) FindUsersByIDs(ctx context.Context, q Querier, ids []int) ([]entities.User, error) {
	if len(ids) == 0 {
		return []entities.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе пользователей: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func (r *UserRepository) FindUsersByNames(ctx context.Context, names []string) ([]entities.User, error) {
	if len(names) == 0 {
		return []entities.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE username = ANY($1)`
	rows, err := r.storage.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе пользователей: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]entities.User, error) {
	users := make([]entities.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) GetUserCapabilities(ctx context.Context, userID int) ([]string, error) {
	query := `
		SELECT rc.capability
		FROM role_capabilities rc
		JOIN users u ON u.role_id = rc.role_id
		WHERE u.id = $1`

	rows, err := r.storage.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе прав пользователя: %w", err)
	}
	defer rows.Close()

	capabilities := make([]string, 0)
	for rows.Next() {
		var capability string
		if err := rows.Scan(&capability); err != nil {
			return nil, err
		}
		capabilities = append(capabilities, capability)
	}
	return capabilities, rows.Err()
}
