// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIにそのまま表示できるメッセージと原因カテゴリを含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ（UIにそのまま表示される）
	Category string // カテゴリ: auth, validation, post, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmptyPost          = "EMPTY_POST"
	ErrCodePostTooLong        = "POST_TOO_LONG"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeNotPostAuthor      = "NOT_POST_AUTHOR"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeDisplayNameMissing = "DISPLAY_NAME_MISSING"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeAvatarTooLarge     = "AVATAR_TOO_LARGE"
	ErrCodeAvatarInvalid      = "AVATAR_INVALID"
)

// NewEmptyPostError は空投稿の検証エラーを生成する。
// メッセージ文言はUI契約の一部であり変更しないこと。
func NewEmptyPostError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyPost,
		Message:  "Please write something before posting",
		Category: "validation",
		Action:   "Write a message and try again.",
	}
}

// NewPostTooLongError は本文長超過の検証エラーを生成する。
func NewPostTooLongError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodePostTooLong,
		Message:  fmt.Sprintf("Posts are limited to %d characters.", limit),
		Category: "validation",
		Action:   "Shorten your post and try again.",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("Post not found: %s", postID),
		Category: "post",
		Action:   "The post may have already been deleted.",
	}
}

// NewNotPostAuthorError は他人の投稿を削除しようとした場合のエラーを生成する。
func NewNotPostAuthorError() *APIError {
	return &APIError{
		Code:     ErrCodeNotPostAuthor,
		Message:  "Only the author can delete this post.",
		Category: "post",
		Action:   "You can only delete your own posts.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザーが存在しない場合とパスワード不一致の場合で文言を変えない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "An account with this email already exists.",
		Category: "auth",
		Action:   "Log in instead, or use a different email.",
	}
}

// NewWeakPasswordError はパスワード強度不足エラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("Password must be at least %d characters.", minLength),
		Category: "validation",
		Action:   "Choose a longer password.",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "Please enter a valid email address.",
		Category: "validation",
		Action:   "Check the email address for typos.",
	}
}

// NewDisplayNameMissingError は表示名未入力エラーを生成する。
// プロフィール保存には表示名が必須（bioのみの保存は受け付けない）。
func NewDisplayNameMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeDisplayNameMissing,
		Message:  "Please add a display name before saving.",
		Category: "validation",
		Action:   "Enter a display name and save again.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Please log in to continue.",
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewAvatarTooLargeError はアバター画像のサイズ超過エラーを生成する。
// メッセージ文言はUI契約の一部であり変更しないこと。
func NewAvatarTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodeAvatarTooLarge,
		Message:  "Please choose an image under 2 MB.",
		Category: "validation",
		Action:   "Pick a smaller image and try again.",
	}
}

// NewAvatarInvalidError はアバター画像の形式エラーを生成する。
func NewAvatarInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeAvatarInvalid,
		Message:  "That file doesn't look like an image.",
		Category: "validation",
		Action:   "Choose a PNG, JPEG, GIF, or WebP image.",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Log in again.",
	}
}
