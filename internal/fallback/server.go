package fallback

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes はAPIリクエストボディの上限バイト数。
const maxBodyBytes = 20000

// フィールドごとの文字数上限。超過分は切り詰める（エラーにはしない）。
const (
	maxAuthorLen = 120
	maxSchoolLen = 80
	maxTextLen   = 1200
)

// contentTypes は拡張子からContent-Typeへのマップ。
// 未知の拡張子はapplication/octet-streamで配信する。
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".woff2": "font/woff2",
}

// Server はフォールバックモードのHTTPハンドラー一式。
type Server struct {
	store     *Store
	publicDir string
}

// NewServer はServerを生成する。publicDirが静的ファイルの配信ルートになる。
func NewServer(store *Store, publicDir string) *Server {
	return &Server{
		store:     store,
		publicDir: publicDir,
	}
}

// Handler は全ルートを構成したハンドラーを返す。
// /api/postsのGET/POST以外のメソッドは405、その他のパスは静的ファイル配信。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/posts", s.listPosts)
	r.Post("/api/posts", s.createPost)
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondText(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})
	r.NotFound(s.serveStatic)

	return r
}

// listPosts は保存済みの投稿を新しい順のJSON配列で返す。
// GET /api/posts
func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Load())
}

// createPostRequest は投稿作成のリクエストボディ。
type createPostRequest struct {
	Author string `json:"author"`
	School string `json:"school"`
	Text   string `json:"text"`
}

// createPost は検証済みの投稿を保存する。
// POST /api/posts
// 検証エラーは400のプレーンテキストで、メッセージをそのままUIに表示できる。
func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondText(w, http.StatusBadRequest, "Payload too large.")
			return
		}
		respondText(w, http.StatusBadRequest, "Invalid JSON payload.")
		return
	}

	var req createPostRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			respondText(w, http.StatusBadRequest, "Invalid JSON payload.")
			return
		}
	}

	author, school, text, err := sanitizePostFields(req.Author, req.School, req.Text)
	if err != nil {
		respondText(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := s.store.Add(author, school, text)
	if err != nil {
		slog.Error("failed to save post", slog.String("error", err.Error()))
		respondText(w, http.StatusBadRequest, "Unable to save post.")
		return
	}

	respondJSON(w, http.StatusCreated, post)
}

// sanitizePostFields は各フィールドをトリムして検証し、上限まで切り詰める。
func sanitizePostFields(author, school, text string) (string, string, string, error) {
	author = strings.TrimSpace(author)
	school = strings.TrimSpace(school)
	text = strings.TrimSpace(text)

	if len([]rune(author)) < 2 {
		return "", "", "", errors.New("Author must be at least 2 characters.")
	}
	if school == "" {
		return "", "", "", errors.New("School is required.")
	}
	if len([]rune(text)) < 12 {
		return "", "", "", errors.New("Post must be at least 12 characters.")
	}

	return truncateRunes(author, maxAuthorLen),
		truncateRunes(school, maxSchoolLen),
		truncateRunes(text, maxTextLen),
		nil
}

// truncateRunes は文字列をルーン数でnに切り詰める。
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// serveStatic は公開ディレクトリから静的ファイルを配信する。
// ルート外へのパストラバーサルは403、存在しないファイルは404。
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	urlPath := r.URL.Path
	if urlPath == "/" {
		urlPath = "/index.html"
	}

	root, err := filepath.Abs(s.publicDir)
	if err != nil {
		respondText(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	filePath := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(urlPath, "/")))
	if filePath != root && !strings.HasPrefix(filePath, root+string(filepath.Separator)) {
		respondText(w, http.StatusForbidden, "Forbidden")
		return
	}

	info, err := os.Stat(filePath)
	if err != nil || !info.Mode().IsRegular() {
		respondText(w, http.StatusNotFound, "Not found")
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		respondText(w, http.StatusNotFound, "Not found")
		return
	}
	defer f.Close()

	contentType := contentTypes[strings.ToLower(filepath.Ext(filePath))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		slog.Error("failed to stream file", slog.String("error", err.Error()))
	}
}

// respondJSON はno-store付きのJSONレスポンスを書き込む。
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// respondText はno-store付きのプレーンテキストレスポンスを書き込む。
func respondText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	io.WriteString(w, message)
}
