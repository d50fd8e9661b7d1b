// Package model はドメインモデルを定義する。
package model

import "time"

// PostMaxLength は投稿本文の最大文字数（トリム後）。
const PostMaxLength = 2000

// Post はボードへの投稿を表す。
// 作成後は削除以外の変更を行わない（本文の上書き更新は存在しない）。
// UserIDは旧データの匿名投稿では空になる。
type Post struct {
	ID        string
	UserID    string // 空文字列は作者情報なし（旧匿名投稿）
	Body      string
	CreatedAt time.Time
}

// FeedScope は投稿一覧の取得範囲を表す。
type FeedScope struct {
	Kind     FeedScopeKind
	AuthorID string // KindがFeedScopeByAuthorの場合のみ使用
	Limit    int    // 0は無制限。KindがFeedScopeAllの場合のみ使用
}

// FeedScopeKind は取得範囲の種別。
type FeedScopeKind string

const (
	// FeedScopeAll は全投稿（新しい順、上限付き）を表す。
	FeedScopeAll FeedScopeKind = "all"
	// FeedScopeByAuthor は特定ユーザーの投稿（新しい順、無制限）を表す。
	FeedScopeByAuthor FeedScopeKind = "by_author"
)

// ScopeAll は上限付きの全投稿スコープを生成する。
func ScopeAll(limit int) FeedScope {
	return FeedScope{Kind: FeedScopeAll, Limit: limit}
}

// ScopeByAuthor は特定ユーザーの投稿スコープを生成する。
func ScopeByAuthor(authorID string) FeedScope {
	return FeedScope{Kind: FeedScopeByAuthor, AuthorID: authorID}
}
