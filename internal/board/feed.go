package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/loreboard/internal/model"
	"github.com/hitoshi/loreboard/internal/security"
)

// FeedState はフィードの表示状態。
type FeedState string

const (
	// FeedStateLoading は読み込み中を表す。
	FeedStateLoading FeedState = "loading"
	// FeedStateError は読み込み失敗を表す。エラーはフィード内の
	// インラインテキストとして表示し、呼び出し側へは投げない。
	FeedStateError FeedState = "error"
	// FeedStateEmpty は投稿ゼロ件を表す。空のコンテナは描画しない。
	FeedStateEmpty FeedState = "empty"
	// FeedStateReady はカード一覧の表示を表す。
	FeedStateReady FeedState = "ready"
)

// PostCard はフィードに表示する1件の投稿。
// Bodyは保存値そのまま（マークアップ解釈なしで描画する前提）、
// BodyHTMLはエスケープ済みのHTML断片。
type PostCard struct {
	ID          string
	UserID      string
	Body        string
	BodyHTML    string
	DisplayTime string
}

// FeedView はフィードの描画内容。
type FeedView struct {
	State   FeedState
	Message string // loading / empty / error 時の表示テキスト
	Cards   []PostCard
}

// FeedMessages はフィードの状態別表示文言。
type FeedMessages struct {
	Loading string
	Empty   string
	Error   string
}

// DefaultFeedMessages はメインフィードの文言。
func DefaultFeedMessages() FeedMessages {
	return FeedMessages{
		Loading: "Loading posts...",
		Empty:   "No posts yet. Be the first to share something!",
		Error:   "Unable to load posts right now.",
	}
}

// FeedController は投稿一覧の取得と描画を担当するコントローラー。
// 変更通知を受けたら差分更新はせず、常に現在のスコープを全件
// 再取得する。再取得は開始時点の世代番号を持ち、より新しい
// 取得が始まっていたら結果を破棄する。
type FeedController struct {
	posts    PostGateway
	renderer security.TextRenderService
	messages FeedMessages

	mu         sync.Mutex
	generation int
	scope      model.FeedScope
	view       FeedView
}

// NewFeedController はFeedControllerを生成する。
func NewFeedController(posts PostGateway, renderer security.TextRenderService, scope model.FeedScope, messages FeedMessages) *FeedController {
	return &FeedController{
		posts:    posts,
		renderer: renderer,
		messages: messages,
		scope:    scope,
		view: FeedView{
			State:   FeedStateLoading,
			Message: messages.Loading,
		},
	}
}

// View は現在の描画内容のコピーを返す。
func (c *FeedController) View() FeedView {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := c.view
	view.Cards = append([]PostCard(nil), c.view.Cards...)
	return view
}

// Scope は現在の取得スコープを返す。
func (c *FeedController) Scope() model.FeedScope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// SetScope は取得スコープを切り替える。次のLoadPostsから有効になる。
func (c *FeedController) SetScope(scope model.FeedScope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.scope = scope
}

// LoadPosts は現在のスコープで投稿一覧を再取得する。
// 取得失敗はエラー状態としてビューに反映し、errorとしても返す。
// 取得中にスコープ変更や新しい取得が始まっていた場合は結果を破棄する。
func (c *FeedController) LoadPosts(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	scope := c.scope
	c.view = FeedView{State: FeedStateLoading, Message: c.messages.Loading}
	c.mu.Unlock()

	posts, err := c.posts.ListPosts(ctx, scope)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// より新しい取得が進行中
		return nil
	}

	if err != nil {
		c.view = FeedView{State: FeedStateError, Message: c.errorMessage(err)}
		return err
	}

	if len(posts) == 0 {
		c.view = FeedView{State: FeedStateEmpty, Message: c.messages.Empty}
		return nil
	}

	cards := make([]PostCard, len(posts))
	for i := range posts {
		cards[i] = c.toCard(&posts[i])
	}
	c.view = FeedView{State: FeedStateReady, Cards: cards}
	return nil
}

// DeletePost は投稿を削除し、成功したら現在のスコープを再取得する。
func (c *FeedController) DeletePost(ctx context.Context, id string) error {
	if err := c.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	return c.LoadPosts(ctx)
}

// Watch は変更通知ストリームを購読し、通知のたびに全件再取得する。
// ctxが終了するかストリームが閉じるまでブロックする。
func (c *FeedController) Watch(ctx context.Context) error {
	changes, err := c.posts.Changes(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			_ = c.LoadPosts(ctx)
		}
	}
}

func (c *FeedController) toCard(post *model.Post) PostCard {
	return PostCard{
		ID:          post.ID,
		UserID:      post.UserID,
		Body:        post.Body,
		BodyHTML:    c.renderer.RenderFragment(post.Body),
		DisplayTime: formatDisplayTime(post.CreatedAt),
	}
}

// errorMessage はゲートウェイエラーの表示文言を選ぶ。
// APIエラーはその文言をそのまま使い、それ以外は汎用文言に落とす。
func (c *FeedController) errorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return c.messages.Error
}

// formatDisplayTime は投稿カードの日時表示を整形する。
// ゼロ値（取得できなかった・解釈できなかった日時）は
// 例外を投げずに "Unknown time" として描画する。
func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return "Unknown time"
	}
	return t.Format("Jan 2, 2006, 3:04 PM")
}
