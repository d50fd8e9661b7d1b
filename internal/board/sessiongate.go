package board

import (
	"context"
	"sync"

	"github.com/hitoshi/loreboard/internal/model"
)

// LoginFlagKey はログイン状態フラグの永続ストアキー。
// 同じページ上の無関係なスクリプトが非同期呼び出しなしに
// ログイン状態を読めるようにするためだけに書き込む。
const LoginFlagKey = "auth:isLoggedIn"

// LoginFlagStore はログイン状態フラグの書き込み先。
// *localstore.Storeが満たす。
type LoginFlagStore interface {
	Set(key, value string) error
	Delete(key string) error
}

// SessionMode はページの認証表示モード。
type SessionMode string

const (
	// SessionModeGuest は未ログイン表示を表す。
	SessionModeGuest SessionMode = "guest"
	// SessionModeMember はログイン済み表示を表す。
	SessionModeMember SessionMode = "member"
)

// SessionView はセッションゲートの描画内容。
type SessionView struct {
	Mode            SessionMode
	Email           string
	DisplayName     string
	StatusMessage   string
	ErrorMessage    string
	ComposerVisible bool // ゲストモードでは常にfalse
}

// SessionGate はページ読み込み時にセッションを確認し、
// ゲスト/メンバー表示を切り替えるコントローラー。
// 認証状態変更のたびに同じ遷移を再実行する。
//
// 各非同期処理は開始時点の世代番号を持ち、完了時に世代が
// 進んでいれば結果を破棄する。遅いセッション取得が新しい
// サインアウト通知を上書きすることを防ぐ。
type SessionGate struct {
	auth  AuthGateway
	flags LoginFlagStore // nil可

	mu         sync.Mutex
	generation int
	session    *model.SessionUser
	view       SessionView
	listeners  []func(*model.SessionUser)
}

// NewSessionGate はSessionGateを生成する。flagsはnil可。
func NewSessionGate(auth AuthGateway, flags LoginFlagStore) *SessionGate {
	return &SessionGate{
		auth: auth,
		flags: flags,
		view: SessionView{
			Mode:          SessionModeGuest,
			StatusMessage: "Checking your session...",
		},
	}
}

// OnSessionChange はモード遷移のたびに呼ばれるリスナーを登録する。
// 引数はメンバーモードなら現在のセッション、ゲストモードならnil。
// コントローラーの組み立て時にのみ呼ぶこと。
func (g *SessionGate) OnSessionChange(fn func(*model.SessionUser)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// View は現在の描画内容のコピーを返す。
func (g *SessionGate) View() SessionView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view
}

// Session は現在キャッシュしているセッションを返す。ゲストならnil。
func (g *SessionGate) Session() *model.SessionUser {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// Load は認証コラボレーターへ現在のセッションを問い合わせ、
// 結果に応じてモードを遷移する。取得中に認証状態変更が
// 届いていた場合、取得結果は破棄される。
// 失敗時はゲスト表示に退避し、エラーを表示する。
func (g *SessionGate) Load(ctx context.Context) {
	g.mu.Lock()
	gen := g.generation
	g.mu.Unlock()

	session, err := g.auth.GetSession(ctx)

	g.mu.Lock()
	if gen != g.generation {
		// 取得中に新しい通知が適用済み
		g.mu.Unlock()
		return
	}
	var notify []func(*model.SessionUser)
	if err != nil {
		notify = g.applyLocked(nil, "Unable to load your profile right now.")
	} else {
		notify = g.applyLocked(session, "")
	}
	current := g.session
	g.mu.Unlock()

	for _, fn := range notify {
		fn(current)
	}
}

// HandleAuthChange は認証状態変更通知を同期的に適用する。
// 世代番号を進めるため、処理中だった古いLoadの結果は破棄される。
func (g *SessionGate) HandleAuthChange(change AuthChange) {
	g.mu.Lock()
	g.generation++
	var notify []func(*model.SessionUser)
	if change.Event == AuthEventSignedOut || change.Session == nil {
		notify = g.applyLocked(nil, "")
	} else {
		notify = g.applyLocked(change.Session, "")
	}
	current := g.session
	g.mu.Unlock()

	for _, fn := range notify {
		fn(current)
	}
}

// Run は認証状態変更ストリームをctxが終了するまで消費する。
func (g *SessionGate) Run(ctx context.Context) {
	changes := g.auth.AuthStateChanges()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			g.HandleAuthChange(change)
		}
	}
}

// applyLocked はモード遷移を適用し、呼び出し側がロック解放後に
// 実行すべきリスナー一覧を返す。g.muを保持して呼ぶこと。
func (g *SessionGate) applyLocked(session *model.SessionUser, errorMessage string) []func(*model.SessionUser) {
	g.session = session

	if session == nil {
		g.view = SessionView{
			Mode:            SessionModeGuest,
			StatusMessage:   "You are browsing as a guest.",
			ErrorMessage:    errorMessage,
			ComposerVisible: false,
		}
		g.setLoginFlag(false)
	} else {
		g.view = SessionView{
			Mode:            SessionModeMember,
			Email:           session.User.Email,
			DisplayName:     session.User.DisplayName,
			StatusMessage:   "Logged in as " + session.User.Email,
			ErrorMessage:    errorMessage,
			ComposerVisible: true,
		}
		g.setLoginFlag(true)
	}

	return append([]func(*model.SessionUser){}, g.listeners...)
}

// setLoginFlag はログイン状態フラグを書き込む。
// フラグは利便性のためだけのもので、書き込み失敗は無視する。
func (g *SessionGate) setLoginFlag(loggedIn bool) {
	if g.flags == nil {
		return
	}
	if loggedIn {
		_ = g.flags.Set(LoginFlagKey, "true")
	} else {
		_ = g.flags.Delete(LoginFlagKey)
	}
}
