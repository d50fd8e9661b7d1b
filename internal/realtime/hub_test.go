package realtime

import (
	"testing"
	"time"

	"github.com/hitoshi/loreboard/internal/model"
)

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub()

	ch1, unsub1 := hub.Subscribe()
	defer unsub1()
	ch2, unsub2 := hub.Subscribe()
	defer unsub2()

	hub.Publish(PostEvent{
		Type:   EventPostCreated,
		Post:   &model.Post{ID: "post-1", Body: "hello"},
		PostID: "post-1",
	})

	for i, ch := range []<-chan PostEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != EventPostCreated {
				t.Errorf("subscriber %d: type = %q, want %q", i, ev.Type, EventPostCreated)
			}
			if ev.PostID != "post-1" {
				t.Errorf("subscriber %d: postID = %q, want %q", i, ev.PostID, "post-1")
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out waiting for event", i)
		}
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()

	ch, unsub := hub.Subscribe()
	if hub.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", hub.SubscriberCount())
	}

	unsub()
	// 二回目の呼び出しも安全であること
	unsub()

	if hub.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d, want 0", hub.SubscriberCount())
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()

	// 受信しない購読者
	_, unsub := hub.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish(PostEvent{Type: EventPostDeleted, PostID: "post-x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestHub_PublishAfterUnsubscribeDoesNotPanic(t *testing.T) {
	hub := NewHub()

	_, unsub := hub.Subscribe()
	unsub()

	hub.Publish(PostEvent{Type: EventPostCreated, PostID: "post-1"})
}
