// Package fallback はデータベースなしで動く簡易サーバーを提供する。
// 投稿はJSONファイルに保存し、静的ファイルを配信する。
// デモ・ローカル確認用で、ホスト版APIが使えない環境の代替として動作する。
package fallback

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// MaxStoredPosts はファイルに保持する投稿の最大件数。超過分は古い順に捨てる。
const MaxStoredPosts = 500

// Post はフォールバックサーバーの投稿レコード。
// CreatedAtはISO 8601文字列（既存データとの互換のため時刻型にしない）。
type Post struct {
	Author    string `json:"author"`
	School    string `json:"school"`
	Text      string `json:"text"`
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// Store は投稿のJSONファイルストア。
// ファイルが唯一の永続状態で、last-write-winsで上書きする。
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore は指定パスをバックエンドとするStoreを生成する。
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load は全投稿を新しい順で返す。
// ファイルが存在しない・壊れている場合は空として扱う。
func (s *Store) Load() []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() []Post {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("unable to read posts file", slog.String("error", err.Error()))
		}
		return []Post{}
	}

	var posts []Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		slog.Error("posts file is not valid JSON", slog.String("error", err.Error()))
		return []Post{}
	}

	sortNewestFirst(posts)
	return posts
}

// Add は投稿を先頭に追加して保存し、保存されたレコードを返す。
// 保持件数の上限を超えた分は切り捨てる。
func (s *Store) Add(author, school, text string) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post := Post{
		Author:    author,
		School:    school,
		Text:      text,
		ID:        nextID(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	posts := append([]Post{post}, s.loadLocked()...)
	if len(posts) > MaxStoredPosts {
		posts = posts[:MaxStoredPosts]
	}

	if err := s.writeLocked(posts); err != nil {
		return Post{}, err
	}
	return post, nil
}

// writeLocked は投稿一覧をインデント付きJSON+末尾改行で書き込む。
// 親ディレクトリは必要に応じて作成する。
func (s *Store) writeLocked(posts []Post) error {
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal posts: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write posts file: %w", err)
	}
	return nil
}

// sortNewestFirst は投稿をcreatedAt降順に並べ替える。
// パースできないcreatedAtはゼロ時刻として末尾に回す。
func sortNewestFirst(posts []Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339, posts[i].CreatedAt)
		tj, _ := time.Parse(time.RFC3339, posts[j].CreatedAt)
		return ti.After(tj)
	})
}

// nextID は投稿IDを生成する。既存データと同じ形式を使う。
func nextID() string {
	return fmt.Sprintf("user-%d-%d", time.Now().UnixMilli(), rand.Intn(100000))
}
