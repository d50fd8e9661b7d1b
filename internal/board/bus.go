package board

import "sync"

// EventAvatarUpdated はページ内ブロードキャストのイベント名。
const EventAvatarUpdated = "profile:avatarUpdated"

// AvatarUpdate はアバター変更ブロードキャストのペイロード。
// Srcがnilの場合は削除を表す。
type AvatarUpdate struct {
	UserID string
	Src    *string
}

// Bus は同一プロセス内のイベントブロードキャスト。
// ブラウザのCustomEventに相当し、同じページ上の別コンポーネント
// （ナビゲーションメニューのアバターなど）へ変更を伝える。
// ハンドラーはPublish呼び出し元のゴルーチンで同期的に実行される。
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(AvatarUpdate)
}

// NewBus はBusを生成する。
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[int]func(AvatarUpdate)),
	}
}

// Subscribe はハンドラーを登録し、解除関数を返す。
func (b *Bus) Subscribe(handler func(AvatarUpdate)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
		})
	}
}

// Publish はすべての登録ハンドラーへ通知する。
func (b *Bus) Publish(update AvatarUpdate) {
	b.mu.Lock()
	handlers := make([]func(AvatarUpdate), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(update)
	}
}
