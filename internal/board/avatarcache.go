package board

import (
	"context"
	"strings"
	"sync"

	"github.com/hitoshi/loreboard/internal/localstore"
)

// AvatarReader はアバターキャッシュの読み取り側。*localstore.Storeが満たす。
type AvatarReader interface {
	Get(key string) (string, bool, error)
}

// AvatarCache はページ内のアバター参照キャッシュ。
// 永続ストアが常に正で、キャッシュは無効化されるだけの存在。
// 別プロセス（別タブ相当）の変更はストアのウォッチャー経由で、
// 同一プロセス内の変更はページ内ブロードキャスト経由で届き、
// どちらも該当ユーザーのエントリを落として再描画を促す。
type AvatarCache struct {
	store AvatarReader

	mu        sync.Mutex
	entries   map[string]string // ユーザーID → data URL（空文字列は「なし」確認済み）
	listeners []func(userID string)
}

// NewAvatarCache はAvatarCacheを生成する。
func NewAvatarCache(store AvatarReader) *AvatarCache {
	return &AvatarCache{
		store:   store,
		entries: make(map[string]string),
	}
}

// OnInvalidate はエントリ無効化のたびに呼ばれるリスナーを登録する。
// 該当ユーザーを表示中のコンポーネントの再描画に使う。
func (c *AvatarCache) OnInvalidate(fn func(userID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Lookup はユーザーのアバターを返す。キャッシュになければ
// 永続ストアから遅延読み込みする。見つからなければ("", false)。
func (c *AvatarCache) Lookup(userID string) (string, bool) {
	c.mu.Lock()
	if src, ok := c.entries[userID]; ok {
		c.mu.Unlock()
		return src, src != ""
	}
	c.mu.Unlock()

	src, ok, err := c.store.Get(AvatarKey(userID))
	if err != nil || !ok {
		src = ""
	}

	c.mu.Lock()
	c.entries[userID] = src
	c.mu.Unlock()
	return src, src != ""
}

// Invalidate はユーザーのエントリを落とし、リスナーへ通知する。
func (c *AvatarCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	listeners := append([]func(string){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(userID)
	}
}

// BindBus はページ内ブロードキャストを購読し、解除関数を返す。
func (c *AvatarCache) BindBus(bus *Bus) func() {
	return bus.Subscribe(func(update AvatarUpdate) {
		c.Invalidate(update.UserID)
	})
}

// Run は永続ストアのウォッチャーイベントをctxが終了するまで消費する。
// アバターキー接頭辞のイベントだけを拾い、該当エントリを無効化する。
func (c *AvatarCache) Run(ctx context.Context, events <-chan localstore.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if !strings.HasPrefix(event.Key, AvatarKeyPrefix) {
				continue
			}
			c.Invalidate(strings.TrimPrefix(event.Key, AvatarKeyPrefix))
		}
	}
}
