// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/loreboard/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile は表示名とbioを同時に置き換える。
	// 片方だけの部分更新は行わない（last-write-wins）。
	UpdateProfile(ctx context.Context, id, displayName, bio string) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// List はスコープに従って投稿を作成日時の降順で取得する。
	List(ctx context.Context, scope model.FeedScope) ([]model.Post, error)

	// Create は投稿を作成する。作成日時はデータベース側で割り当てられ、
	// 呼び出し後にpost.CreatedAtへ反映される。
	Create(ctx context.Context, post *model.Post) error

	// DeleteByID は指定IDの投稿を削除する。
	// 削除された場合はtrueを返す。存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}
