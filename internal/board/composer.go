package board

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hitoshi/loreboard/internal/model"
)

// ComposerView は投稿フォームの描画内容。
type ComposerView struct {
	Visible    bool   // ゲストモードでは非表示（サーバー側拒否に頼らない）
	Input      string // 送信失敗時は入力を保持して再試行できるようにする
	Status     string
	StatusTone string // muted / success / error
	Submitting bool
}

// Composer は新規投稿の検証と送信を担当するコントローラー。
// 検証エラーはゲートウェイ呼び出し前に返し、ネットワークには出ない。
type Composer struct {
	posts    PostGateway
	onPosted func(ctx context.Context) // 投稿成功時のフィード再読込フック。nil可

	mu   sync.Mutex
	view ComposerView
}

// NewComposer はComposerを生成する。onPostedはnil可。
func NewComposer(posts PostGateway, onPosted func(ctx context.Context)) *Composer {
	return &Composer{
		posts:    posts,
		onPosted: onPosted,
	}
}

// View は現在の描画内容のコピーを返す。
func (c *Composer) View() ComposerView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetVisible はフォームの表示可否を切り替える。
// セッションゲートのモード遷移から呼ばれる。
func (c *Composer) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Visible = visible
	if !visible {
		c.view.Status = ""
		c.view.StatusTone = ""
	}
}

// SetInput は入力中の本文を反映する。
func (c *Composer) SetInput(body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Input = body
}

// SubmitPost は本文を検証して投稿する。
// 空白のみの本文と上限超過はゲートウェイを呼ばずに拒否する。
// 成功したら入力を消去し、一時的な完了ステータスを表示して
// フィード再読込フックを呼ぶ。失敗したら入力を保持したまま
// ゲートウェイのエラー文言をそのまま表示する。
func (c *Composer) SubmitPost(ctx context.Context, body string) error {
	c.mu.Lock()
	if !c.view.Visible {
		c.view.Status = "Please log in to post."
		c.view.StatusTone = "error"
		c.mu.Unlock()
		return model.NewUnauthorizedError()
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		err := model.NewEmptyPostError()
		c.view.Input = body
		c.view.Status = err.Message
		c.view.StatusTone = "error"
		c.mu.Unlock()
		return err
	}
	if utf8.RuneCountInString(trimmed) > model.PostMaxLength {
		err := model.NewPostTooLongError(model.PostMaxLength)
		c.view.Input = body
		c.view.Status = err.Message
		c.view.StatusTone = "error"
		c.mu.Unlock()
		return err
	}

	c.view.Input = body
	c.view.Submitting = true
	c.view.Status = ""
	c.view.StatusTone = ""
	c.mu.Unlock()

	_, err := c.posts.CreatePost(ctx, trimmed)

	c.mu.Lock()
	c.view.Submitting = false
	if err != nil {
		c.view.Status = submitErrorMessage(err)
		c.view.StatusTone = "error"
		c.mu.Unlock()
		return err
	}

	c.view.Input = ""
	c.view.Status = "Post created!"
	c.view.StatusTone = "success"
	c.mu.Unlock()

	if c.onPosted != nil {
		c.onPosted(ctx)
	}
	return nil
}

// submitErrorMessage は投稿失敗時の表示文言を選ぶ。
func submitErrorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "Could not create post. Please try again."
}
