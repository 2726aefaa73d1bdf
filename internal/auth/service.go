// Package auth はトークン発行・検証、パスワード照合、サインアップとログインを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sharebnb/internal/model"
	"github.com/hitoshi/sharebnb/internal/repository"
	"github.com/hitoshi/sharebnb/internal/validate"
)

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// TokenIssuer はセッショントークンの発行と検証のインターフェース。
type TokenIssuer interface {
	Issue(username string) (string, error)
	Verify(token string) (*Claims, error)
}

// Denylist は失効済みトークンの保存先インターフェース。
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AttemptRecorder は認証試行の結果を記録するインターフェース。
type AttemptRecorder interface {
	RecordAuthAttempt(operation, result string)
}

// 認証試行の結果ラベル
const (
	resultSuccess  = "success"
	resultInvalid  = "invalid"
	resultConflict = "conflict"
	resultError    = "error"
)

// ユーザー不在時のログインでも照合コストを揃えるためのダミー入力。
const dummyPassword = "sharebnb-dummy-password"

// SignupInput はサインアップの入力。
type SignupInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
	ImageURL  string
}

// Service はサインアップ、ログイン、ログアウト、トークン認証を提供する。
type Service struct {
	userRepo    repository.UserRepository
	hasher      PasswordHasher
	tokens      TokenIssuer
	denylist    Denylist
	recorder    AttemptRecorder
	dummyDigest string
	now         func() time.Time
}

// NewService はServiceを生成する。denylistとrecorderはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	denylist Denylist,
	recorder AttemptRecorder,
) *Service {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		slog.Warn("ダミーダイジェストの生成に失敗しました", slog.String("error", err.Error()))
	}
	return &Service{
		userRepo:    userRepo,
		hasher:      hasher,
		tokens:      tokens,
		denylist:    denylist,
		recorder:    recorder,
		dummyDigest: dummy,
		now:         time.Now,
	}
}

// Signup はユーザーを登録し、セッショントークンを返す。
// username、emailが既に使われている場合はConflictエラーを返す。
func (s *Service) Signup(ctx context.Context, in SignupInput) (string, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	if err := validateSignup(in); err != nil {
		return "", err
	}

	existing, err := s.userRepo.FindByUsername(ctx, in.Username)
	if err != nil {
		s.record("signup", resultError)
		return "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		s.record("signup", resultConflict)
		return "", model.NewUsernameTakenError()
	}

	existing, err = s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		s.record("signup", resultError)
		return "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		s.record("signup", resultConflict)
		return "", model.NewEmailTakenError()
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.record("signup", resultError)
		return "", err
	}

	user := &model.User{
		Username:     in.Username,
		PasswordHash: digest,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		ImageURL:     in.ImageURL,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前確認と挿入の間に別リクエストが登録した場合
		switch {
		case errors.Is(err, repository.ErrUsernameTaken):
			s.record("signup", resultConflict)
			return "", model.NewUsernameTakenError()
		case errors.Is(err, repository.ErrEmailTaken):
			s.record("signup", resultConflict)
			return "", model.NewEmailTakenError()
		}
		s.record("signup", resultError)
		return "", fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.record("signup", resultError)
		return "", err
	}

	s.record("signup", resultSuccess)
	slog.Info("ユーザーを登録しました", slog.String("username", user.Username))
	return token, nil
}

// Login は認証情報を照合し、セッショントークンを返す。
// ユーザー不在とパスワード不一致は同じInvalidCredentialsエラーになる。
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	errs := model.FieldErrors{}
	validate.Required(errs, "username", username)
	if password == "" {
		errs.Add("password", "password is required")
	}
	if err := errs.Err(); err != nil {
		return "", err
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		s.record("login", resultError)
		return "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		s.hasher.Verify(password, s.dummyDigest)
		s.record("login", resultInvalid)
		return "", model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.record("login", resultInvalid)
		slog.Info("ログインに失敗しました", slog.String("username", username))
		return "", model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.record("login", resultError)
		return "", err
	}
	s.record("login", resultSuccess)
	return token, nil
}

// Logout は操作主体のトークンを失効させる。
// Denylistが未設定の場合は何もしない（クライアントがトークンを破棄する）。
func (s *Service) Logout(ctx context.Context, identity *model.Identity) error {
	if s.denylist == nil || identity == nil {
		return nil
	}
	ttl := identity.ExpiresAt.Sub(s.now())
	if err := s.denylist.Revoke(ctx, identity.TokenID, ttl); err != nil {
		return err
	}
	slog.Info("トークンを失効させました", slog.String("username", identity.Username))
	return nil
}

// Authenticate はトークンを検証し、操作主体を返す。
// 失効済みトークンはErrTokenRevokedを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims.Identity(), nil
}

func (s *Service) record(operation, result string) {
	if s.recorder != nil {
		s.recorder.RecordAuthAttempt(operation, result)
	}
}

// validateSignup はサインアップ入力を検証し、全ての違反をまとめて返す。
func validateSignup(in SignupInput) error {
	errs := model.FieldErrors{}
	validate.Username(errs, in.Username)
	validate.Password(errs, in.Password)
	if validate.Required(errs, "first_name", in.FirstName) {
		validate.MaxLength(errs, "first_name", in.FirstName, validate.NameMaxLength)
	}
	if validate.Required(errs, "last_name", in.LastName) {
		validate.MaxLength(errs, "last_name", in.LastName, validate.NameMaxLength)
	}
	validate.Email(errs, in.Email)
	validate.HTTPURL(errs, "image_url", in.ImageURL)
	return errs.Err()
}
