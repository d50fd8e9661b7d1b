package localstore

import (
	"log/slog"
	"time"
)

// ChangeEvent は外部プロセスによるキーの変更を表す。
// 削除された場合はValueがnil。
type ChangeEvent struct {
	Key   string
	Value *string
}

// Watcher はストアのディレクトリを定期スキャンし、
// 自プロセス以外による変更をイベントとして配信する。
type Watcher struct {
	store    *Store
	interval time.Duration
	events   chan ChangeEvent
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher はWatcherを生成してポーリングを開始する。
func NewWatcher(store *Store, interval time.Duration) *Watcher {
	w := &Watcher{
		store:    store,
		interval: interval,
		events:   make(chan ChangeEvent, 16),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// Events は変更イベントのチャネルを返す。
// 受信が追いつかない場合、イベントは破棄される。
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// Close はポーリングを停止する。停止後Eventsはクローズされる。
func (w *Watcher) Close() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) loop() {
	defer close(w.doneCh)
	defer close(w.events)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll はディレクトリを走査し、既知状態との差分をイベントとして送る。
func (w *Watcher) poll() {
	w.store.mu.Lock()
	current, err := w.store.scan()
	if err != nil {
		w.store.mu.Unlock()
		slog.Error("localstore poll failed", slog.String("error", err.Error()))
		return
	}

	var changed []string
	var removed []string

	for key, stamp := range current {
		prev, known := w.store.seen[key]
		if !known || !prev.modTime.Equal(stamp.modTime) || prev.size != stamp.size {
			changed = append(changed, key)
		}
	}
	for key := range w.store.seen {
		if _, ok := current[key]; !ok {
			removed = append(removed, key)
		}
	}

	w.store.seen = current
	w.store.mu.Unlock()

	for _, key := range changed {
		value, ok, err := w.store.Get(key)
		if err != nil || !ok {
			continue
		}
		w.emit(ChangeEvent{Key: key, Value: &value})
	}
	for _, key := range removed {
		w.emit(ChangeEvent{Key: key, Value: nil})
	}
}

func (w *Watcher) emit(event ChangeEvent) {
	select {
	case w.events <- event:
	default:
	}
}
