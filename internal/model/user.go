// Package model はドメインモデルを定義する。
package model

import "time"

// User はボード利用ユーザーを表す。
// DisplayNameとBioはプロフィールメタデータで、更新時は常に両方を
// まとめて置き換える（last-write-wins、部分マージはしない）。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Bio          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// 期限切れのセッションは存在しないものとして扱う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionUser はセッションとその所有ユーザーを結合したモデル。
// 認証ゲートウェイのgetSession応答に相当する。
type SessionUser struct {
	Session Session
	User    User
}
