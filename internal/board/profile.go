package board

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/loreboard/internal/model"
	"github.com/hitoshi/loreboard/internal/security"
)

// AvatarKeyPrefix はアバターキャッシュの永続ストアキー接頭辞。
// キーは AvatarKeyPrefix + ユーザーID。
const AvatarKeyPrefix = "profile:avatar:"

// AvatarKey はユーザーIDに対応するアバターキャッシュキーを返す。
func AvatarKey(userID string) string {
	return AvatarKeyPrefix + userID
}

// AvatarStore はアバターキャッシュの永続ストア。
// *localstore.Storeが満たす。
type AvatarStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// ProfileState はプロフィールページの表示状態。
type ProfileState string

const (
	// ProfileStateGuest は未ログイン表示を表す。
	ProfileStateGuest ProfileState = "guest"
	// ProfileStateViewing はサマリー表示（編集フォーム非表示）を表す。
	ProfileStateViewing ProfileState = "member-view"
	// ProfileStateEditing は編集フォーム表示を表す。
	// サマリーは編集中も読み取り専用のまま表示し続ける。
	ProfileStateEditing ProfileState = "member-edit"
)

// ProfileView はプロフィールページの描画内容。
type ProfileView struct {
	State         ProfileState
	StatusMessage string

	SummaryName string // 未設定なら "Profile"
	SummaryBio  string

	NameInput  string
	BioInput   string
	FormStatus string
	FormTone   string // muted / success / error
	Saving     bool

	AvatarSrc    string // 空文字列はプレースホルダー表示
	AvatarStatus string

	OwnPosts FeedView
}

// ProfileConfig はProfileControllerの任意設定。
type ProfileConfig struct {
	// AckDelay は保存成功の確認表示からサマリー表示へ戻るまでの時間。
	// ゼロの場合は1200msになる。
	AckDelay time.Duration
}

// ProfileController はプロフィールページのコントローラー。
// リモートのユーザーメタデータ（表示名・bio）と、サーバーへは
// 送らないローカルキャッシュのアバター画像をひとつのビューに
// まとめる。保存には表示名が必須（bioのみの保存は受け付けない）。
type ProfileController struct {
	auth     AuthGateway
	store    AvatarStore
	bus      *Bus
	ownPosts *FeedController
	ackDelay time.Duration

	// テストから確認表示の遅延を制御するためのフック
	schedule func(d time.Duration, fn func())

	mu         sync.Mutex
	generation int
	userID     string
	view       ProfileView
}

// NewProfileController はProfileControllerを生成する。busはnil可。
func NewProfileController(auth AuthGateway, posts PostGateway, renderer security.TextRenderService, store AvatarStore, bus *Bus, config ProfileConfig) *ProfileController {
	ackDelay := config.AckDelay
	if ackDelay == 0 {
		ackDelay = 1200 * time.Millisecond
	}

	ownPosts := NewFeedController(posts, renderer, model.ScopeByAuthor(""), FeedMessages{
		Loading: "Loading your posts...",
		Empty:   "No posts yet. Share something on the Lore Board to see it here.",
		Error:   "Unable to load your posts right now.",
	})

	c := &ProfileController{
		auth:     auth,
		store:    store,
		bus:      bus,
		ownPosts: ownPosts,
		ackDelay: ackDelay,
		view: ProfileView{
			State:         ProfileStateGuest,
			StatusMessage: "Checking your session...",
		},
	}
	c.schedule = func(d time.Duration, fn func()) {
		time.AfterFunc(d, fn)
	}
	return c
}

// View は現在の描画内容のコピーを返す。
func (c *ProfileController) View() ProfileView {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := c.view
	view.OwnPosts = c.ownPosts.View()
	return view
}

// Load は認証コラボレーターへ現在のセッションを問い合わせ、
// ゲスト/メンバー表示を切り替える。取得中に認証状態変更が
// 届いていた場合、取得結果は破棄される。
func (c *ProfileController) Load(ctx context.Context) {
	c.mu.Lock()
	gen := c.generation
	c.view.StatusMessage = "Checking your session..."
	c.mu.Unlock()

	session, err := c.auth.GetSession(ctx)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.showGuestLocked("Unable to load your profile right now.")
		c.mu.Unlock()
		return
	}
	if session == nil {
		c.showGuestLocked("You’re not logged in yet.")
		c.mu.Unlock()
		return
	}
	c.renderMemberLocked(&session.User)
	c.mu.Unlock()

	c.LoadOwnPosts(ctx)
}

// HandleAuthChange は認証状態変更通知を同期的に適用する。
// 処理中だった古いLoadの結果は世代番号により破棄される。
func (c *ProfileController) HandleAuthChange(ctx context.Context, change AuthChange) {
	c.mu.Lock()
	c.generation++
	if change.Event == AuthEventSignedOut || change.Session == nil {
		c.showGuestLocked("Signed out. Log in to view your profile.")
		c.mu.Unlock()
		return
	}
	c.renderMemberLocked(&change.Session.User)
	c.mu.Unlock()

	c.LoadOwnPosts(ctx)
}

// BeginEdit は編集フォームを開く。ゲストモードでは何もしない。
func (c *ProfileController) BeginEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view.State != ProfileStateViewing {
		return
	}
	c.view.State = ProfileStateEditing
	c.view.FormStatus = ""
	c.view.FormTone = ""
}

// CancelEdit は編集フォームを閉じてサマリー表示に戻る。
func (c *ProfileController) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view.State != ProfileStateEditing {
		return
	}
	c.view.State = ProfileStateViewing
	c.view.FormStatus = ""
	c.view.FormTone = ""
}

// UpdateProfile は表示名とbioをまとめて全置換で保存する。
// 表示名が空の場合はゲートウェイを呼ばずに拒否する。
// 成功したらサマリーを更新し、確認表示のあと短い遅延を置いて
// サマリー表示へ戻る。失敗したら編集フォームを開いたまま
// ゲートウェイのエラー文言を表示する。
func (c *ProfileController) UpdateProfile(ctx context.Context, displayName, bio string) error {
	displayName = strings.TrimSpace(displayName)
	bio = strings.TrimSpace(bio)

	c.mu.Lock()
	if c.userID == "" {
		c.view.FormStatus = "Log in to update your profile."
		c.view.FormTone = "error"
		c.mu.Unlock()
		return model.NewUnauthorizedError()
	}

	if displayName == "" {
		err := model.NewDisplayNameMissingError()
		c.view.FormStatus = err.Message
		c.view.FormTone = "error"
		c.mu.Unlock()
		return err
	}

	gen := c.generation
	c.view.Saving = true
	c.view.FormStatus = "Saving your profile..."
	c.view.FormTone = "muted"
	c.mu.Unlock()

	user, err := c.auth.UpdateUser(ctx, displayName, bio)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return nil
	}
	c.view.Saving = false
	if err != nil {
		c.view.FormStatus = profileErrorMessage(err)
		c.view.FormTone = "error"
		c.mu.Unlock()
		return err
	}

	c.view.NameInput = user.DisplayName
	c.view.BioInput = user.Bio
	c.applySummaryLocked(user.DisplayName, user.Bio)
	c.view.FormStatus = "Profile updated."
	c.view.FormTone = "success"
	c.mu.Unlock()

	// 確認表示をユーザーに見せてからサマリーへ戻る
	c.schedule(c.ackDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation || c.view.State != ProfileStateEditing {
			return
		}
		c.view.State = ProfileStateViewing
		c.view.FormStatus = ""
		c.view.FormTone = ""
	})
	return nil
}

// SetAvatar は画像を読み込んでローカルのアバターキャッシュへ保存する。
// 上限（2 MiB）を超えるファイルは読み込む前に拒否し、既存の
// キャッシュは変更しない。保存に成功したらプレビューを更新し、
// ページ内ブロードキャストで他のコンポーネントへ通知する。
func (c *ProfileController) SetAvatar(mimeType string, size int64, r io.Reader) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if userID == "" {
		c.setAvatarStatus("Log in to update your picture.")
		return model.NewUnauthorizedError()
	}

	if size > security.AvatarMaxBytes {
		err := model.NewAvatarTooLargeError()
		c.setAvatarStatus(err.Message)
		return err
	}

	data, err := io.ReadAll(io.LimitReader(r, security.AvatarMaxBytes+1))
	if err != nil {
		c.setAvatarStatus("Unable to read that file. Try another image.")
		return err
	}
	if len(data) > security.AvatarMaxBytes {
		apiErr := model.NewAvatarTooLargeError()
		c.setAvatarStatus(apiErr.Message)
		return apiErr
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	if err := security.ValidateAvatarDataURL(dataURL); err != nil {
		c.setAvatarStatus(profileErrorMessage(err))
		return err
	}

	if err := c.store.Set(AvatarKey(userID), dataURL); err != nil {
		c.setAvatarStatus("Unable to save your picture. Try again.")
		return err
	}

	c.mu.Lock()
	c.view.AvatarSrc = dataURL
	c.view.AvatarStatus = "Saved. Your picture now appears in the menu."
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Publish(AvatarUpdate{UserID: userID, Src: &dataURL})
	}
	return nil
}

// ResetAvatar はアバターキャッシュを削除してプレースホルダー表示に戻し、
// 削除をページ内ブロードキャストで通知する。
func (c *ProfileController) ResetAvatar() error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if userID == "" {
		return model.NewUnauthorizedError()
	}

	if err := c.store.Delete(AvatarKey(userID)); err != nil {
		c.setAvatarStatus("Unable to remove your picture. Try again.")
		return err
	}

	c.mu.Lock()
	c.view.AvatarSrc = ""
	c.view.AvatarStatus = "Picture removed. You can add one anytime."
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Publish(AvatarUpdate{UserID: userID, Src: nil})
	}
	return nil
}

// LoadOwnPosts は自分の投稿をメインフィードとは独立したパネルへ
// 読み込む。ゲストモードでは何もしない。
func (c *ProfileController) LoadOwnPosts(ctx context.Context) {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		return
	}
	_ = c.ownPosts.LoadPosts(ctx)
}

// showGuestLocked はゲスト表示へ遷移する。c.muを保持して呼ぶこと。
func (c *ProfileController) showGuestLocked(message string) {
	c.userID = ""
	c.view = ProfileView{
		State:         ProfileStateGuest,
		StatusMessage: message,
		SummaryName:   "Profile",
		SummaryBio:    "Share a short description for your profile.",
	}
}

// renderMemberLocked はメンバー表示へ遷移する。c.muを保持して呼ぶこと。
func (c *ProfileController) renderMemberLocked(user *model.User) {
	c.userID = user.ID
	c.ownPosts.SetScope(model.ScopeByAuthor(user.ID))

	c.view = ProfileView{
		State:     ProfileStateViewing,
		NameInput: user.DisplayName,
		BioInput:  user.Bio,
	}
	c.applySummaryLocked(user.DisplayName, user.Bio)
	c.syncAvatarLocked(user.ID)
}

// applySummaryLocked はサマリー表示を更新する。c.muを保持して呼ぶこと。
func (c *ProfileController) applySummaryLocked(displayName, bio string) {
	if displayName == "" {
		displayName = "Profile"
	}
	if bio == "" {
		bio = "Add a short description to personalize your profile."
	}
	c.view.SummaryName = displayName
	c.view.SummaryBio = bio
}

// syncAvatarLocked はローカルキャッシュからプレビューを復元する。
// c.muを保持して呼ぶこと。
func (c *ProfileController) syncAvatarLocked(userID string) {
	src, ok, err := c.store.Get(AvatarKey(userID))
	if err != nil || !ok {
		c.view.AvatarSrc = ""
		c.view.AvatarStatus = "Choose a picture to personalize your account."
		return
	}
	c.view.AvatarSrc = src
	c.view.AvatarStatus = ""
}

func (c *ProfileController) setAvatarStatus(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.AvatarStatus = message
}

// profileErrorMessage はゲートウェイエラーの表示文言を選ぶ。
func profileErrorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "Unable to save your profile."
}
