package repository

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのSQLSTATE
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// 一意制約名
const (
	constraintUsersPkey     = "users_pkey"
	constraintUsersEmailKey = "users_email_key"
)

// classifyPQError は*pq.Errorを制約違反のセンチネルエラーへ変換する。
// 制約違反以外のエラーはそのまま返す。
func classifyPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pqUniqueViolation:
		switch pqErr.Constraint {
		case constraintUsersPkey:
			return ErrUsernameTaken
		case constraintUsersEmailKey:
			return ErrEmailTaken
		}
		return ErrDuplicate
	case pqForeignKeyViolation:
		return ErrForeignKey
	}
	return err
}
