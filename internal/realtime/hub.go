// Package realtime は投稿イベントのプロセス内pub/subを提供する。
// SSEハンドラやポーリング中のビューがフィード更新を購読するために使う。
package realtime

import (
	"sync"

	"github.com/hitoshi/loreboard/internal/model"
)

// イベント種別
const (
	EventPostCreated = "post_created"
	EventPostDeleted = "post_deleted"
)

// PostEvent は投稿の作成・削除を通知するイベント。
// 削除イベントではPostはnilでPostIDのみ有効。
type PostEvent struct {
	Type   string      `json:"type"`
	Post   *model.Post `json:"post,omitempty"`
	PostID string      `json:"post_id"`
}

// subscriberBuffer は各購読チャネルのバッファ長。
// 受信が追いつかない購読者はイベントを取りこぼす（ブロックはしない）。
const subscriberBuffer = 16

// Hub は購読者の集合を管理し、イベントを配信する。
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan PostEvent
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{
		subs: make(map[int]chan PostEvent),
	}
}

// Subscribe は新しい購読チャネルと解除関数を返す。
// 解除関数は複数回呼んでも安全。解除後、チャネルはクローズされる。
func (h *Hub) Subscribe() (<-chan PostEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan PostEvent, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
	return ch, unsubscribe
}

// Publish は全購読者にイベントを配信する。
// バッファが満杯の購読者はスキップする（遅い購読者が全体を止めない）。
func (h *Hub) Publish(event PostEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount は現在の購読者数を返す。
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
