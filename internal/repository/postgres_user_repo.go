package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sharebnb/internal/model"
)

const userColumns = `username, password, email, first_name, last_name, image_url, location, created_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUsername は指定usernameのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// List は全ユーザーをusername順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Create はユーザーを作成する。
// 一意制約違反はErrUsernameTaken/ErrEmailTakenに変換する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password, email, first_name, last_name, image_url, location)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		 RETURNING created_at`,
		user.Username, user.PasswordHash, user.Email, user.FirstName, user.LastName,
		user.ImageURL, user.Location,
	).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", classifyPQError(err))
	}
	return nil
}

// Update はプロフィール項目とパスワードダイジェストを更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET password = $2, email = $3, first_name = $4, last_name = $5,
		     image_url = $6, location = NULLIF($7, '')
		 WHERE username = $1`,
		user.Username, user.PasswordHash, user.Email, user.FirstName, user.LastName,
		user.ImageURL, user.Location,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", classifyPQError(err))
	}
	return requireAffected(result, "user")
}

// DeleteByUsername は指定ユーザーを削除する。
// listings、bookings、messages、imagesはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByUsername(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = $1`,
		username,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(result, "user")
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	user := &model.User{}
	var location sql.NullString
	err := s.Scan(
		&user.Username, &user.PasswordHash, &user.Email, &user.FirstName, &user.LastName,
		&user.ImageURL, &location, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Location = location.String
	return user, nil
}

// requireAffected は更新・削除対象が存在しなかった場合にErrNotFoundを返す。
func requireAffected(result sql.Result, entity string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
