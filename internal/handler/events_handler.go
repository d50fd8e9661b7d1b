package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/loreboard/internal/metrics"
	"github.com/hitoshi/loreboard/internal/realtime"
)

// EventsHandlerConfig はSSEハンドラーの設定。
type EventsHandlerConfig struct {
	HeartbeatInterval time.Duration // keep-aliveコメントの送信間隔
}

// defaultHeartbeatInterval は間隔が未設定（0以下）の場合に使う。
const defaultHeartbeatInterval = 25 * time.Second

// EventsHandler は投稿イベントをServer-Sent Eventsで配信するハンドラー。
type EventsHandler struct {
	hub     *realtime.Hub
	config  EventsHandlerConfig
	metrics *metrics.Recorder
}

// NewEventsHandler はEventsHandlerを生成する。recorderはnilでもよい。
func NewEventsHandler(hub *realtime.Hub, config EventsHandlerConfig, rec *metrics.Recorder) *EventsHandler {
	return &EventsHandler{
		hub:     hub,
		config:  config,
		metrics: rec,
	}
}

// Stream は投稿イベントのSSEストリームを開始する。
// GET /api/realtime/posts
// クライアントが切断するまでイベントとハートビートを送り続ける。
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// プロキシのバッファリングを避けるため、接続確立を即座に通知する
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	if h.metrics != nil {
		h.metrics.SSESubscribed()
		defer h.metrics.SSEUnsubscribed()
	}

	interval := h.config.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to marshal event", slog.String("error", err.Error()))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
