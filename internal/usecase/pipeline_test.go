package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atljh/TeleCloneX/internal/domain"
)

func newTestPipeline(client domain.ChatClient, sink domain.EventSink, mode domain.RelayMode) *Pipeline {
	return NewPipeline(PipelineConfig{
		Client:        client,
		Extractor:     NewExtractor(testLogger()),
		Uniq:          NewUniquifier(UniquifierConfig{Logger: testLogger()}),
		Publisher:     NewPublisher(testLogger()),
		Dedup:         NewAlbumDedup(0),
		Sink:          sink,
		Account:       domain.Account{Phone: "+111", Targets: []domain.ChannelRef{"mytarget"}},
		Sources:       []domain.ChannelRef{"source"},
		Mode:          mode,
		PostsToClone:  10,
		FloodCooldown: time.Millisecond,
		QueueSize:     16,
		Logger:        testLogger(),
	})
}

func TestHistoryReplayOrderAndAlbums(t *testing.T) {
	// Five messages, 3 and 4 share a media group: four publishes, the
	// album exactly once, all in chronological order.
	history := []domain.RawMessage{
		{ID: 5, Text: "five", Source: "source"},
		{ID: 4, Text: "", GroupID: 99, MediaKind: domain.MediaPhoto, Source: "source"},
		{ID: 3, Text: "three", GroupID: 99, MediaKind: domain.MediaPhoto, Source: "source"},
		{ID: 2, Text: "two", Source: "source"},
		{ID: 1, Text: "one", Source: "source"},
	}

	client := &mockChatClient{
		historyFunc: func(ctx context.Context, ref domain.ChannelRef, limit int) ([]domain.RawMessage, error) {
			return history, nil
		},
		downloadFunc: func(ctx context.Context, msg domain.RawMessage) (string, error) {
			return "/tmp/album.jpg", nil
		},
	}
	sink := &mockSink{}

	if err := newTestPipeline(client, sink, domain.ModeHistory).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sends []string
	for _, call := range client.recorded() {
		if strings.HasPrefix(call, "send_") {
			sends = append(sends, call)
		}
	}
	want := []string{
		"send_text:mytarget",  // msg 1
		"send_text:mytarget",  // msg 2
		"send_album:mytarget", // msgs 3+4 as one album
		"send_text:mytarget",  // msg 5
	}
	if len(sends) != len(want) {
		t.Fatalf("expected %d sends, got %d: %v", len(want), len(sends), sends)
	}
	for i, call := range sends {
		if call != want[i] {
			t.Errorf("send %d: expected %s, got %s", i, want[i], call)
		}
	}

	if len(sink.events) != 4 {
		t.Errorf("expected 4 audit events, got %d", len(sink.events))
	}
	albums := 0
	for _, ev := range sink.events {
		if ev.Album {
			albums++
		}
	}
	if albums != 1 {
		t.Errorf("expected exactly 1 album event, got %d", albums)
	}
}

func TestHistorySmallBatchStillCollectsAlbumSiblings(t *testing.T) {
	// Replay depth 1 fetches just one member of a two-photo group; the
	// sibling scan widens to the recent-message window.
	full := []domain.RawMessage{
		{ID: 4, GroupID: 99, MediaKind: domain.MediaPhoto, Source: "source"},
		{ID: 3, Text: "pair", GroupID: 99, MediaKind: domain.MediaPhoto, Source: "source"},
	}

	var albumSize int
	client := &mockChatClient{
		historyFunc: func(ctx context.Context, ref domain.ChannelRef, limit int) ([]domain.RawMessage, error) {
			if limit == 1 {
				return full[:1], nil
			}
			return full, nil
		},
		downloadFunc: func(ctx context.Context, msg domain.RawMessage) (string, error) {
			return "/tmp/album.jpg", nil
		},
		sendAlbumFunc: func(ctx context.Context, target domain.ChannelRef, paths []string, kinds []domain.MediaKind, caption string) error {
			albumSize = len(paths)
			return nil
		},
	}

	p := newTestPipeline(client, &mockSink{}, domain.ModeHistory)
	p.postsToClone = 1

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if albumSize != 2 {
		t.Errorf("expected both album members published, got %d", albumSize)
	}
}

func TestHistoryMediaReachesEveryTarget(t *testing.T) {
	// The same scratch file backs every target's upload; it must
	// survive until the last target is served.
	scratch := filepath.Join(t.TempDir(), "media.jpg")

	var missing []string
	client := &mockChatClient{
		historyFunc: func(ctx context.Context, ref domain.ChannelRef, limit int) ([]domain.RawMessage, error) {
			return []domain.RawMessage{{ID: 1, MediaKind: domain.MediaPhoto, Source: "source"}}, nil
		},
		downloadFunc: func(ctx context.Context, msg domain.RawMessage) (string, error) {
			if err := os.WriteFile(scratch, []byte("data"), 0o644); err != nil {
				return "", err
			}
			return scratch, nil
		},
		sendFileFunc: func(ctx context.Context, target domain.ChannelRef, path string, caption string, kind domain.MediaKind) error {
			if _, err := os.Stat(path); err != nil {
				missing = append(missing, string(target))
			}
			return nil
		},
	}

	p := newTestPipeline(client, &mockSink{}, domain.ModeHistory)
	p.account.Targets = []domain.ChannelRef{"t1", "t2"}

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("targets uploaded from a deleted scratch file: %v", missing)
	}

	var sends int
	for _, call := range client.recorded() {
		if strings.HasPrefix(call, "send_") {
			sends++
		}
	}
	if sends != 2 {
		t.Errorf("expected one send per target, got %d", sends)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Error("scratch file should be removed after the last target")
	}
}

func TestHistorySkipsUnreachableSource(t *testing.T) {
	client := &mockChatClient{
		probeFunc: func(ctx context.Context, ref domain.ChannelRef) error {
			return domain.ErrChannelNotFound
		},
		historyFunc: func(ctx context.Context, ref domain.ChannelRef, limit int) ([]domain.RawMessage, error) {
			t.Error("history should not be fetched for unreachable source")
			return nil, nil
		},
	}

	if err := newTestPipeline(client, &mockSink{}, domain.ModeHistory).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHistoryFailedExtractionSkipsUnit(t *testing.T) {
	client := &mockChatClient{
		historyFunc: func(ctx context.Context, ref domain.ChannelRef, limit int) ([]domain.RawMessage, error) {
			return []domain.RawMessage{
				{ID: 1, Text: "with media", MediaKind: domain.MediaPhoto, Source: "source"},
				{ID: 2, Text: "plain", Source: "source"},
			}, nil
		},
		downloadFunc: func(ctx context.Context, msg domain.RawMessage) (string, error) {
			return "", domain.ErrMediaForbidden
		},
	}

	if err := newTestPipeline(client, &mockSink{}, domain.ModeHistory).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sends []string
	for _, call := range client.recorded() {
		if strings.HasPrefix(call, "send_") {
			sends = append(sends, call)
		}
	}
	if len(sends) != 1 || sends[0] != "send_text:mytarget" {
		t.Errorf("expected only the plain message published, got %v", sends)
	}
}

func TestLiveRelayStopDiscardsQueue(t *testing.T) {
	subscribed := make(chan func(domain.RawMessage), 1)
	unsubscribed := make(chan struct{})

	client := &mockChatClient{
		subscribeFunc: func(ctx context.Context, sources []domain.ChannelRef, fn func(domain.RawMessage)) (func(), error) {
			subscribed <- fn
			return func() { close(unsubscribed) }, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	p := newTestPipeline(client, &mockSink{}, domain.ModeLive)
	go func() { done <- p.Run(ctx) }()

	// Wait for subscription, then stop.
	select {
	case <-subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription never happened")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("live relay did not stop")
	}

	select {
	case <-unsubscribed:
	default:
		t.Error("stop must deregister the subscription")
	}
}

func TestLiveRelayProcessesQueuedEvent(t *testing.T) {
	subscribed := make(chan func(domain.RawMessage), 1)
	client := &mockChatClient{
		subscribeFunc: func(ctx context.Context, sources []domain.ChannelRef, fn func(domain.RawMessage)) (func(), error) {
			subscribed <- fn
			return func() {}, nil
		},
	}
	sink := &mockSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	p := newTestPipeline(client, sink, domain.ModeLive)
	go func() { done <- p.Run(ctx) }()

	var emit func(domain.RawMessage)
	select {
	case emit = <-subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription never happened")
	}

	emit(domain.RawMessage{ID: 10, Text: "live post", Source: "source"})

	waitFor := time.After(2 * time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.events)
		sink.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-waitFor:
			t.Fatal("queued event was never published")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}
