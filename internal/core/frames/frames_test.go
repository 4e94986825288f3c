package frames

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	var zero T
	return zero
}

func TestCoordinatorAnswersFromSenderTab(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	NewCoordinator(bus, zerolog.Nop())
	bus.SetTab(1, "三体 第7集_腾讯视频", "https://v.qq.com/x/cover/abc.html")
	bus.RegisterFrame(Address{TabID: 1, FrameID: 2}, func(Message, Sender, Respond) {})

	got := make(chan TabTitle, 1)
	bus.SendRuntime(Address{TabID: 1, FrameID: 2}, Message{Action: ActionGetTabTitle}, func(data json.RawMessage) {
		var tt TabTitle
		_ = json.Unmarshal(data, &tt)
		got <- tt
	})

	tt := recv(t, got)
	if tt.Title != "三体 第7集_腾讯视频" || tt.URL != "https://v.qq.com/x/cover/abc.html" {
		t.Errorf("reply = %+v", tt)
	}
}

func TestProgressRoutedToTopFrame(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	NewCoordinator(bus, zerolog.Nop())

	top := make(chan Message, 1)
	child := make(chan Message, 1)
	bus.RegisterFrame(Address{TabID: 3, FrameID: 0}, func(m Message, _ Sender, _ Respond) { top <- m })
	bus.RegisterFrame(Address{TabID: 3, FrameID: 1}, func(m Message, _ Sender, _ Respond) { child <- m })

	bus.SendRuntime(Address{TabID: 3, FrameID: 1}, Message{Action: ActionSyncVideoProgress, Time: 42, Duration: 1400}, nil)

	m := recv(t, top)
	if m.Action != ActionTriggerAutoUpdate || m.Time != 42 || m.Duration != 1400 {
		t.Errorf("top frame got %+v", m)
	}
	select {
	case m := <-child:
		t.Errorf("iframe must not receive the forwarded progress, got %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequest(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	if _, err := bus.Request(context.Background(), 9, Message{Action: ActionGetNiceTitle}, nil); !errors.Is(err, ErrNoTab) {
		t.Errorf("unknown tab: err = %v", err)
	}

	// Frame 0 has no video and stays silent, frame 1 answers.
	bus.RegisterFrame(Address{TabID: 1, FrameID: 0}, func(Message, Sender, Respond) {})
	bus.RegisterFrame(Address{TabID: 1, FrameID: 1}, func(m Message, _ Sender, respond Respond) {
		respond(VideoInfo{IsIframe: true, Series: "三体", Time: 12})
		respond(VideoInfo{Series: "ignored"})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := bus.Request(ctx, 1, Message{Action: ActionGetRequestVideoInfo}, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	var info VideoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatal(err)
	}
	if !info.IsIframe || info.Series != "三体" {
		t.Errorf("info = %+v", info)
	}

	top := TopFrame
	short, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := bus.Request(short, 1, Message{Action: ActionGetRequestVideoInfo}, &top); !errors.Is(err, ErrNoReply) {
		t.Errorf("silent frame: err = %v, want ErrNoReply", err)
	}
}

func TestUnregisterFrame(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	unregister := bus.RegisterFrame(Address{TabID: 4, FrameID: 0}, func(Message, Sender, Respond) {})
	if len(bus.Tabs()) != 1 {
		t.Fatalf("Tabs = %v", bus.Tabs())
	}
	unregister()
	if _, ok := bus.Tab(4); ok {
		t.Error("tab kept after its last frame left")
	}
}

func TestTopInfoCacheDropsStaleReplies(t *testing.T) {
	var c TopInfoCache
	var pending func(json.RawMessage)
	send := func(reply func(json.RawMessage)) { pending = reply }

	c.RefreshFromRemote(send, nil)
	c.Invalidate()
	pending(json.RawMessage(`{"title":"old","url":"https://old"}`))
	if _, ready := c.Get(); ready {
		t.Fatal("stale reply made the cache ready")
	}

	var readyWith TabTitle
	c.RefreshFromRemote(send, func(tt TabTitle) { readyWith = tt })
	if _, ready := c.Get(); ready {
		t.Fatal("cache ready before the reply")
	}
	pending(json.RawMessage(`{"title":"new","url":"https://new"}`))

	info, ready := c.Get()
	if !ready || info.Title != "new" || readyWith.URL != "https://new" {
		t.Errorf("Get = %+v, %v; onReady got %+v", info, ready, readyWith)
	}

	c.Invalidate()
	if info, ready := c.Get(); ready || info.Title != "" {
		t.Errorf("after Invalidate: %+v, %v", info, ready)
	}
}
