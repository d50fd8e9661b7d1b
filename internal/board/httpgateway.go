package board

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/loreboard/internal/model"
)

// authChangeBuffer はHTTPGatewayの通知チャンネルのバッファ数。
const authChangeBuffer = 16

// HTTPGateway はホストされたAPIに対するAuthGateway/PostGatewayの実装。
// Cookieジャーでセッション・CSRFのCookieを保持し、状態変更
// リクエストにはCSRFトークンヘッダーを付与する。
// 認証状態変更は自分のサインイン/サインアウト成功時に発火する。
type HTTPGateway struct {
	baseURL string
	client  *http.Client

	mu        sync.Mutex
	csrfToken string
	changes   chan AuthChange
}

// NewHTTPGateway はHTTPGatewayを生成する。
// clientがnilの場合はCookieジャー付きのクライアントを新規作成する。
func NewHTTPGateway(baseURL string, client *http.Client) (*HTTPGateway, error) {
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client = &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		}
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		changes: make(chan AuthChange, authChangeBuffer),
	}, nil
}

// AuthStateChanges は認証状態変更の通知ストリームを返す。
func (g *HTTPGateway) AuthStateChanges() <-chan AuthChange {
	return g.changes
}

// userPayload はAPIのユーザーレスポンスボディ。
type userPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

func (p userPayload) toSessionUser() *model.SessionUser {
	return &model.SessionUser{
		Session: model.Session{UserID: p.ID},
		User: model.User{
			ID:          p.ID,
			Email:       p.Email,
			DisplayName: p.DisplayName,
			Bio:         p.Bio,
		},
	}
}

// GetSession は現在のセッションを問い合わせる。ゲストなら(nil, nil)。
func (g *HTTPGateway) GetSession(ctx context.Context) (*model.SessionUser, error) {
	resp, err := g.do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var payload userPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	return payload.toSessionUser(), nil
}

// SignUp はアカウントを作成してサインインする。
func (g *HTTPGateway) SignUp(ctx context.Context, email, password string) (*model.SessionUser, error) {
	return g.authenticate(ctx, "/auth/signup", http.StatusCreated, email, password)
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
func (g *HTTPGateway) SignInWithPassword(ctx context.Context, email, password string) (*model.SessionUser, error) {
	return g.authenticate(ctx, "/auth/login", http.StatusOK, email, password)
}

func (g *HTTPGateway) authenticate(ctx context.Context, path string, wantStatus int, email, password string) (*model.SessionUser, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := g.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return nil, decodeAPIError(resp)
	}

	var payload userPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}

	session := payload.toSessionUser()
	g.emit(AuthChange{Event: AuthEventSignedIn, Session: session})
	return session, nil
}

// SignOut はサインアウトし、サーバー側のセッションを破棄する。
func (g *HTTPGateway) SignOut(ctx context.Context) error {
	resp, err := g.do(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}

	g.emit(AuthChange{Event: AuthEventSignedOut})
	return nil
}

// UpdateUser は表示名とbioを全置換で更新する。
func (g *HTTPGateway) UpdateUser(ctx context.Context, displayName, bio string) (*model.User, error) {
	body := map[string]string{"display_name": displayName, "bio": bio}
	resp, err := g.do(ctx, http.MethodPatch, "/auth/me", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var payload userPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}

	session := payload.toSessionUser()
	g.emit(AuthChange{Event: AuthEventUserUpdated, Session: session})
	return &session.User, nil
}

// postPayload はAPIの投稿レスポンスボディ。
type postPayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (p postPayload) toPost() model.Post {
	return model.Post{
		ID:        p.ID,
		UserID:    p.UserID,
		Body:      p.Body,
		CreatedAt: p.CreatedAt,
	}
}

// ListPosts は投稿一覧を新しい順で取得する。
func (g *HTTPGateway) ListPosts(ctx context.Context, scope model.FeedScope) ([]model.Post, error) {
	path := "/api/posts"
	switch scope.Kind {
	case model.FeedScopeByAuthor:
		path += "?author=" + scope.AuthorID
	default:
		if scope.Limit > 0 {
			path += "?limit=" + strconv.Itoa(scope.Limit)
		}
	}

	resp, err := g.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var payload struct {
		Posts []postPayload `json:"posts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode posts response: %w", err)
	}

	posts := make([]model.Post, len(payload.Posts))
	for i, p := range payload.Posts {
		posts[i] = p.toPost()
	}
	return posts, nil
}

// CreatePost は投稿を作成し、保存された行を返す。
func (g *HTTPGateway) CreatePost(ctx context.Context, body string) (*model.Post, error) {
	resp, err := g.do(ctx, http.MethodPost, "/api/posts", map[string]string{"body": body})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeAPIError(resp)
	}

	var payload postPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode post response: %w", err)
	}
	post := payload.toPost()
	return &post, nil
}

// DeletePost は投稿を削除する。
func (g *HTTPGateway) DeletePost(ctx context.Context, id string) error {
	resp, err := g.do(ctx, http.MethodDelete, "/api/posts/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}
	return nil
}

// Changes はSSEストリームを購読し、投稿テーブルの変更ごとに
// 通知を送るチャンネルを返す。ctxが終了するとストリームを閉じる。
func (g *HTTPGateway) Changes(ctx context.Context) (<-chan struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/realtime/posts", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create realtime request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open realtime stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	events := make(chan struct{}, 1)
	go func() {
		defer resp.Body.Close()
		defer close(events)

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			// コメント行（ハートビート等）は無視し、イベント行だけ拾う
			if !strings.HasPrefix(line, "event:") {
				continue
			}
			select {
			case events <- struct{}{}:
			default:
				// 未消費の通知が既にある。どうせ全件再取得なのでまとめる
			}
		}
	}()
	return events, nil
}

// do はCSRFトークンを付与してAPIリクエストを送る。
func (g *HTTPGateway) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !isSafeMethod(method) {
		token, err := g.ensureCSRFToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-CSRF-Token", token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	return resp, nil
}

// ensureCSRFToken はCSRFトークンを取得し、以後のリクエストで再利用する。
func (g *HTTPGateway) ensureCSRFToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	token := g.csrfToken
	g.mu.Unlock()
	if token != "" {
		return token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/csrf-token", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create csrf request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode csrf response: %w", err)
	}

	g.mu.Lock()
	g.csrfToken = payload.Token
	g.mu.Unlock()
	return payload.Token, nil
}

func (g *HTTPGateway) emit(change AuthChange) {
	select {
	case g.changes <- change:
	default:
		// 購読側が追いついていない場合は落とす
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// decodeAPIError はエラーレスポンスボディをAPIErrorへ復元する。
// 本文がJSONでない場合はステータスコードだけのエラーを返す。
func decodeAPIError(resp *http.Response) error {
	var body struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Category string `json:"category"`
		Action   string `json:"action"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return &model.APIError{
		Code:     body.Code,
		Message:  body.Message,
		Category: body.Category,
		Action:   body.Action,
	}
}

// compile-time interface check
var (
	_ AuthGateway = (*HTTPGateway)(nil)
	_ PostGateway = (*HTTPGateway)(nil)
)
