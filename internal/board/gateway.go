// Package board は掲示板ページのビューコントローラー群を提供する。
// セッションゲート、フィード、投稿フォーム、プロフィール、
// クロスタブ同期を、ゲートウェイインターフェース越しに実装する。
// DOMは扱わず、各コントローラーは描画内容を表すビューモデルを公開する。
package board

import (
	"context"

	"github.com/hitoshi/loreboard/internal/model"
)

// AuthEvent は認証状態変更通知の種別。
type AuthEvent string

const (
	// AuthEventSignedIn はサインイン完了を表す。
	AuthEventSignedIn AuthEvent = "SIGNED_IN"
	// AuthEventSignedOut はサインアウト完了を表す。
	AuthEventSignedOut AuthEvent = "SIGNED_OUT"
	// AuthEventUserUpdated はユーザーメタデータの更新を表す。
	AuthEventUserUpdated AuthEvent = "USER_UPDATED"
)

// AuthChange は認証状態変更の通知。
// SessionはAuthEventSignedOutの場合nilになる。
type AuthChange struct {
	Event   AuthEvent
	Session *model.SessionUser
}

// AuthGateway は認証コラボレーターへのインターフェース。
// GetSessionはゲストの場合(nil, nil)を返す。
type AuthGateway interface {
	GetSession(ctx context.Context) (*model.SessionUser, error)
	SignUp(ctx context.Context, email, password string) (*model.SessionUser, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.SessionUser, error)
	SignOut(ctx context.Context) error
	UpdateUser(ctx context.Context, displayName, bio string) (*model.User, error)

	// AuthStateChanges は認証状態変更の通知ストリームを返す。
	// 通知は到着順に1件ずつ処理されることを前提とする。
	AuthStateChanges() <-chan AuthChange
}

// PostGateway は投稿データコラボレーターへのインターフェース。
type PostGateway interface {
	ListPosts(ctx context.Context, scope model.FeedScope) ([]model.Post, error)
	CreatePost(ctx context.Context, body string) (*model.Post, error)
	DeletePost(ctx context.Context, id string) error

	// Changes は投稿テーブルの変更通知ストリームを返す。
	// 通知に差分情報はなく、受信側は常に全件再取得する。
	Changes(ctx context.Context) (<-chan struct{}, error)
}
