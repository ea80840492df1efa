package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// mockChatClient implements domain.ChatClient with overridable
// function fields. Unset functions succeed with zero values.
type mockChatClient struct {
	mu    sync.Mutex
	calls []string

	selfFunc         func(ctx context.Context) (string, error)
	resolveFunc      func(ctx context.Context, ref domain.ChannelRef) (domain.ChannelInfo, error)
	isMemberFunc     func(ctx context.Context, ref domain.ChannelRef) (bool, error)
	joinPublicFunc   func(ctx context.Context, ref domain.ChannelRef) error
	importInviteFunc func(ctx context.Context, hash string) error
	probeFunc        func(ctx context.Context, ref domain.ChannelRef) error
	historyFunc      func(ctx context.Context, ref domain.ChannelRef, limit int) ([]domain.RawMessage, error)
	subscribeFunc    func(ctx context.Context, sources []domain.ChannelRef, fn func(domain.RawMessage)) (func(), error)
	downloadFunc     func(ctx context.Context, msg domain.RawMessage) (string, error)
	sendTextFunc     func(ctx context.Context, target domain.ChannelRef, text string) error
	sendFileFunc     func(ctx context.Context, target domain.ChannelRef, path, caption string, kind domain.MediaKind) error
	sendAlbumFunc    func(ctx context.Context, target domain.ChannelRef, paths []string, kinds []domain.MediaKind, caption string) error
}

func (m *mockChatClient) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockChatClient) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockChatClient) Self(ctx context.Context) (string, error) {
	m.record("self")
	if m.selfFunc != nil {
		return m.selfFunc(ctx)
	}
	return "+10000000000", nil
}

func (m *mockChatClient) Resolve(ctx context.Context, ref domain.ChannelRef) (domain.ChannelInfo, error) {
	m.record("resolve:" + string(ref))
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, ref)
	}
	return domain.ChannelInfo{Kind: domain.KindChannel}, nil
}

func (m *mockChatClient) IsMember(ctx context.Context, ref domain.ChannelRef) (bool, error) {
	m.record("is_member:" + string(ref))
	if m.isMemberFunc != nil {
		return m.isMemberFunc(ctx, ref)
	}
	return false, nil
}

func (m *mockChatClient) JoinPublic(ctx context.Context, ref domain.ChannelRef) error {
	m.record("join:" + string(ref))
	if m.joinPublicFunc != nil {
		return m.joinPublicFunc(ctx, ref)
	}
	return nil
}

func (m *mockChatClient) ImportInvite(ctx context.Context, hash string) error {
	m.record("import:" + hash)
	if m.importInviteFunc != nil {
		return m.importInviteFunc(ctx, hash)
	}
	return nil
}

func (m *mockChatClient) Probe(ctx context.Context, ref domain.ChannelRef) error {
	m.record("probe:" + string(ref))
	if m.probeFunc != nil {
		return m.probeFunc(ctx, ref)
	}
	return nil
}

func (m *mockChatClient) History(ctx context.Context, ref domain.ChannelRef, limit int) ([]domain.RawMessage, error) {
	m.record("history:" + string(ref))
	if m.historyFunc != nil {
		return m.historyFunc(ctx, ref, limit)
	}
	return nil, nil
}

func (m *mockChatClient) Subscribe(ctx context.Context, sources []domain.ChannelRef, fn func(domain.RawMessage)) (func(), error) {
	m.record("subscribe")
	if m.subscribeFunc != nil {
		return m.subscribeFunc(ctx, sources, fn)
	}
	return func() {}, nil
}

func (m *mockChatClient) DownloadMedia(ctx context.Context, msg domain.RawMessage) (string, error) {
	m.record("download")
	if m.downloadFunc != nil {
		return m.downloadFunc(ctx, msg)
	}
	return "", nil
}

func (m *mockChatClient) SendText(ctx context.Context, target domain.ChannelRef, text string) error {
	m.record("send_text:" + string(target))
	if m.sendTextFunc != nil {
		return m.sendTextFunc(ctx, target, text)
	}
	return nil
}

func (m *mockChatClient) SendFile(ctx context.Context, target domain.ChannelRef, path, caption string, kind domain.MediaKind) error {
	m.record("send_file:" + string(target))
	if m.sendFileFunc != nil {
		return m.sendFileFunc(ctx, target, path, caption, kind)
	}
	return nil
}

func (m *mockChatClient) SendAlbum(ctx context.Context, target domain.ChannelRef, paths []string, kinds []domain.MediaKind, caption string) error {
	m.record("send_album:" + string(target))
	if m.sendAlbumFunc != nil {
		return m.sendAlbumFunc(ctx, target, paths, kinds, caption)
	}
	return nil
}

func (m *mockChatClient) Close(ctx context.Context) error {
	m.record("close")
	return nil
}

var _ domain.ChatClient = (*mockChatClient)(nil)

// mockBlacklist is an in-memory blacklist store.
type mockBlacklist struct {
	mu    sync.Mutex
	pairs map[string]bool
	added []string
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{pairs: make(map[string]bool)}
}

func (b *mockBlacklist) Contains(phone string, ref domain.ChannelRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pairs[phone+":"+string(ref)]
}

func (b *mockBlacklist) Add(phone string, ref domain.ChannelRef) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := phone + ":" + string(ref)
	b.pairs[key] = true
	b.added = append(b.added, key)
	return nil
}

// mockRewriter returns a canned rewrite or error.
type mockRewriter struct {
	out string
	err error
}

func (r *mockRewriter) Rewrite(ctx context.Context, text string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.out != "" {
		return r.out, nil
	}
	return text, nil
}

// mockTransformer returns a canned output path or error.
type mockTransformer struct {
	out string
	err error
}

func (t *mockTransformer) Transform(ctx context.Context, path string, kind domain.MediaKind) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	if t.out != "" {
		return t.out, nil
	}
	return path, nil
}

// mockSink records published relay events.
type mockSink struct {
	mu     sync.Mutex
	events []domain.RelayEvent
}

func (s *mockSink) Published(ctx context.Context, ev domain.RelayEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *mockSink) Close() error { return nil }

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
