package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewRecorder_ReturnsNonNil はRecorderが正常に生成されることを検証する。
func TestNewRecorder_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	if r == nil {
		t.Fatal("expected non-nil Recorder")
	}
}

// TestPostCreated_IncrementsCounter は投稿作成カウンタが増加することを検証する。
func TestPostCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.PostCreated()
	r.PostCreated()

	if got := counterValue(t, reg, "loreboard_posts_created_total"); got != 2 {
		t.Errorf("posts_created_total = %v, want 2", got)
	}
}

// TestPostDeleted_IncrementsCounter は投稿削除カウンタが増加することを検証する。
func TestPostDeleted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.PostDeleted()

	if got := counterValue(t, reg, "loreboard_posts_deleted_total"); got != 1 {
		t.Errorf("posts_deleted_total = %v, want 1", got)
	}
}

// TestSignUpSignIn_IncrementCounters は認証カウンタが増加することを検証する。
func TestSignUpSignIn_IncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.SignUp()
	r.SignIn()
	r.SignIn()

	if got := counterValue(t, reg, "loreboard_signups_total"); got != 1 {
		t.Errorf("signups_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "loreboard_signins_total"); got != 2 {
		t.Errorf("signins_total = %v, want 2", got)
	}
}

// TestHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.HTTPStatus(200)
	r.HTTPStatus(200)
	r.HTTPStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "loreboard_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("loreboard_http_status_total metric not found")
	}
}

// TestRequestLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RequestLatency(100 * time.Millisecond)
	r.RequestLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "loreboard_request_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("loreboard_request_latency_seconds metric not found")
	}
}

// TestSSESubscriberGauge_IncrementsAndDecrements はSSE購読者ゲージが増減することを検証する。
func TestSSESubscriberGauge_IncrementsAndDecrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.SSESubscribed()
	r.SSESubscribed()
	r.SSEUnsubscribed()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "loreboard_sse_subscribers" {
			found = true
			val := mf.GetMetric()[0].GetGauge().GetValue()
			if val != 1 {
				t.Errorf("sse_subscribers = %v, want 1", val)
			}
		}
	}
	if !found {
		t.Error("loreboard_sse_subscribers metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat はハンドラーがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.PostCreated()
	r.SignUp()
	r.HTTPStatus(200)
	r.RequestLatency(500 * time.Millisecond)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"loreboard_posts_created_total",
		"loreboard_signups_total",
		"loreboard_http_status_total",
		"loreboard_request_latency_seconds",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleRecorders_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleRecorders_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	r1 := NewRecorder(reg1)
	r2 := NewRecorder(reg2)

	r1.PostCreated()
	r2.PostCreated()
	r2.PostCreated()

	if got := counterValue(t, reg1, "loreboard_posts_created_total"); got != 1 {
		t.Errorf("reg1 posts_created = %v, want 1", got)
	}
	if got := counterValue(t, reg2, "loreboard_posts_created_total"); got != 2 {
		t.Errorf("reg2 posts_created = %v, want 2", got)
	}
}

// counterValue は指定名のカウンタの現在値を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			if len(mf.GetMetric()) != 1 {
				t.Fatalf("expected 1 metric for %s, got %d", name, len(mf.GetMetric()))
			}
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("%s metric not found", name)
	return 0
}
