// Package auth はメール+パスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/loreboard/internal/model"
	"github.com/hitoshi/loreboard/internal/repository"
)

// minPasswordLength はサインアップ時に要求するパスワードの最小文字数。
const minPasswordLength = 8

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// SignUp は新規アカウントを作成し、セッションを発行する。
// メール形式とパスワード長を検証し、重複メールは*model.APIErrorで拒否する。
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.SessionUser, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !isValidEmail(email) {
		return nil, model.NewInvalidEmailError()
	}
	if len(password) < minPasswordLength {
		return nil, model.NewWeakPasswordError(minPasswordLength)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user signed up", slog.String("user_id", user.ID))

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &model.SessionUser{Session: *session, User: *user}, nil
}

// SignInWithPassword はメールとパスワードを検証し、セッションを発行する。
// ユーザー不在とパスワード不一致は区別せず同一のエラーを返す。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*model.SessionUser, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	slog.Info("user signed in", slog.String("user_id", user.ID))

	return &model.SessionUser{Session: *session, User: *user}, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))
	return nil
}

// GetSession はセッションIDから現在のセッションとユーザーを取得する。
// セッションが存在しない・期限切れの場合は(nil, nil)を返す（ゲスト扱い）。
func (s *Service) GetSession(ctx context.Context, sessionID string) (*model.SessionUser, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return &model.SessionUser{Session: *session, User: *user}, nil
}

// UpdateProfile は表示名とbioをまとめて置き換える。
// 表示名は必須。bioは空でもよい。両フィールドを常に同時に送る（full replace）。
func (s *Service) UpdateProfile(ctx context.Context, userID, displayName, bio string) (*model.User, error) {
	displayName = strings.TrimSpace(displayName)
	bio = strings.TrimSpace(bio)

	if displayName == "" {
		return nil, model.NewDisplayNameMissingError()
	}

	user, err := s.userRepo.UpdateProfile(ctx, userID, displayName, bio)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("profile updated", slog.String("user_id", userID))
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// isValidEmail はメールアドレスの形式を簡易検証する。
// 厳密なRFC検証は行わない（最終的な到達性はメール送信側の責務）。
func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") || domain == "localhost"
}
