package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/loreboard/internal/middleware"
	"github.com/hitoshi/loreboard/internal/model"
	"github.com/hitoshi/loreboard/internal/security"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	List(ctx context.Context, scope model.FeedScope) ([]model.Post, error)
	Create(ctx context.Context, userID, body string) (*model.Post, error)
	Delete(ctx context.Context, userID, postID string) error
}

// PostHandlerConfig は投稿ハンドラーの設定。
type PostHandlerConfig struct {
	DefaultLimit int // author指定なしの一覧で返す最大件数
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service  PostServiceInterface
	renderer security.TextRenderService
	config   PostHandlerConfig
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, renderer security.TextRenderService, config PostHandlerConfig) *PostHandler {
	return &PostHandler{
		service:  service,
		renderer: renderer,
		config:   config,
	}
}

// postResponse は投稿のレスポンスボディ。
// Bodyは保存値そのまま、BodyHTMLは表示用にエスケープ済みの断片。
type postResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Body      string    `json:"body"`
	BodyHTML  string    `json:"body_html"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *PostHandler) toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Body:      p.Body,
		BodyHTML:  h.renderer.RenderFragment(p.Body),
		CreatedAt: p.CreatedAt,
	}
}

// List は投稿一覧を新しい順で返す。
// GET /api/posts?author=me|<userID>&limit=N
// author=meはセッション必須。author指定なしは公開フィード。
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	var scope model.FeedScope

	author := r.URL.Query().Get("author")
	switch author {
	case "":
		limit := h.config.DefaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= limit {
				limit = parsed
			}
		}
		scope = model.ScopeAll(limit)
	case "me":
		userID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		scope = model.ScopeByAuthor(userID)
	default:
		scope = model.ScopeByAuthor(author)
	}

	posts, err := h.service.List(r.Context(), scope)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]postResponse, len(posts))
	for i := range posts {
		responses[i] = h.toPostResponse(&posts[i])
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts": responses,
	})
}

// createPostRequest は投稿作成のリクエストボディ。
type createPostRequest struct {
	Body string `json:"body"`
}

// Create は投稿を作成する。セッション必須。
// author無しの投稿行は移行前の遺産データとしてのみ存在し、新規には作らない。
// POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Request body must be valid JSON.",
			Category: "validation",
			Action:   "Check the request format and try again.",
		})
		return
	}

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil || userID == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	post, err := h.service.Create(r.Context(), userID, req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toPostResponse(post))
}

// Delete は自分の投稿を削除する。
// DELETE /api/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	postID := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), userID, postID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
