package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/loreboard/internal/metrics"
	"github.com/hitoshi/loreboard/internal/middleware"
	"github.com/hitoshi/loreboard/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password string) (*model.SessionUser, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.SessionUser, error)
	SignOut(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*model.SessionUser, error)
	UpdateProfile(ctx context.Context, userID, displayName, bio string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はメール+パスワード認証とプロフィールのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics *metrics.Recorder
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, rec *metrics.Recorder) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: rec,
	}
}

// credentialsRequest はサインアップ・ログイン共通のリクエストボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のレスポンスボディ。
type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
	}
}

// SignUp は新規アカウントを作成しセッションCookieを設定する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Request body must be valid JSON.",
			Category: "validation",
			Action:   "Check the request format and try again.",
		})
		return
	}

	su, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SignUp()
	}

	h.setSessionCookie(w, su.Session.ID)
	writeJSON(w, http.StatusCreated, toUserResponse(&su.User))
}

// Login はメールとパスワードを検証しセッションCookieを設定する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Request body must be valid JSON.",
			Category: "validation",
			Action:   "Check the request format and try again.",
		})
		return
	}

	su, err := h.service.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SignIn()
	}

	h.setSessionCookie(w, su.Session.ID)
	writeJSON(w, http.StatusOK, toUserResponse(&su.User))
}

// Logout はセッションを破棄しCookieをクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.SignOut(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to sign out", slog.String("error", logoutErr.Error()))
			// サインアウト失敗してもCookieはクリアする
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	su, ok := h.currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(&su.User))
}

// updateProfileRequest はプロフィール更新のリクエストボディ。
// 表示名とbioは常に両方送る（部分更新ではなく全置換）。
type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

// UpdateMe は現在のユーザーのプロフィールを更新する。
// PATCH /auth/me
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	su, ok := h.currentSession(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Request body must be valid JSON.",
			Category: "validation",
			Action:   "Check the request format and try again.",
		})
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), su.User.ID, req.DisplayName, req.Bio)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// currentSession はCookieから現在のセッションを解決する。
// 未認証の場合は401を書き込んでfalseを返す。
func (h *AuthHandler) currentSession(w http.ResponseWriter, r *http.Request) (*model.SessionUser, bool) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}

	su, err := h.service.GetSession(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to get session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	if su == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}

	return su, true
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieをクリアする。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
