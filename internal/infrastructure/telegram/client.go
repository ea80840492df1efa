package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/styling"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// Client implements domain.ChatClient on top of gotd/td. All raw RPC
// errors are run through the classification table before they leave
// this package.
type Client struct {
	client *telegram.Client
	api    *tg.Client
	sender *message.Sender
	upload *uploader.Uploader

	phone       string
	downloadDir string

	connected  bool
	mu         sync.RWMutex
	cancelFunc context.CancelFunc
	runDone    chan struct{}

	// Resolved channel cache: normalized ref -> input channel
	channels   map[domain.ChannelRef]*tg.InputChannel
	channelsMu sync.Mutex

	// Live subscription state, set via Subscribe and cleared by its
	// deregistration func
	subs  map[int64]domain.ChannelRef
	subFn func(domain.RawMessage)
	subMu sync.Mutex

	logger      zerolog.Logger
	rateLimiter *rate.Limiter
}

// ClientConfig holds configuration for one account's MTProto client
type ClientConfig struct {
	APIID         int
	APIHash       string
	Phone         string
	SessionFile   string
	StringSession string
	Proxy         string // socks5:host:port:user:pass, empty = direct
	DownloadDir   string
	Logger        zerolog.Logger
}

// NewClient creates a client for one account. The connection is
// established by Connect.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIID == 0 {
		return nil, fmt.Errorf("APIID is required")
	}
	if cfg.APIHash == "" {
		return nil, fmt.Errorf("APIHash is required")
	}
	if cfg.Phone == "" {
		return nil, fmt.Errorf("Phone is required")
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloads"
	}

	c := &Client{
		phone:       cfg.Phone,
		downloadDir: cfg.DownloadDir,
		channels:    make(map[domain.ChannelRef]*tg.InputChannel),
		subs:        make(map[int64]domain.ChannelRef),
		logger:      cfg.Logger.With().Str("component", "mtproto_client").Logger(),
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}

	storage, err := EnsureSession(context.Background(), cfg.SessionFile, cfg.StringSession)
	if err != nil {
		return nil, fmt.Errorf("prepare session: %w", err)
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(c.onNewChannelMessage)

	opts := telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  dispatcher,
	}

	if cfg.Proxy != "" {
		dial, err := socks5Dial(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("proxy setup: %w", err)
		}
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: dial})
	}

	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, opts)
	return c, nil
}

// socks5Dial parses the socks5:host:port:user:pass proxy format and
// returns a dial function for the DC resolver.
func socks5Dial(raw string) (dcs.DialFunc, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 5 || parts[0] != "socks5" {
		return nil, fmt.Errorf("invalid proxy format %q, want socks5:host:port:user:pass", raw)
	}
	auth := &proxy.Auth{User: parts[3], Password: parts[4]}
	dialer, err := proxy.SOCKS5("tcp", net.JoinHostPort(parts[1], parts[2]), auth, proxy.Direct)
	if err != nil {
		return nil, err
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer does not support context")
	}
	return contextDialer.DialContext, nil
}

// Connect establishes the MTProto connection and keeps it alive in a
// background goroutine until Close is called. The session must already
// be authorized; interactive login is out of scope for relay runs.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		c.logger.Debug().Msg("already connected")
		return nil
	}

	clientCtx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel
	c.runDone = make(chan struct{})

	readyChan := make(chan struct{})
	errChan := make(chan error, 1)

	go func() {
		defer close(c.runDone)
		err := c.client.Run(clientCtx, func(ctx context.Context) error {
			c.api = c.client.API()
			c.sender = message.NewSender(c.api)
			c.upload = uploader.NewUploader(c.api)

			status, err := c.client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("check auth status: %w", err)
			}
			if !status.Authorized {
				return domain.ErrAuthTerminated
			}

			close(readyChan)
			<-ctx.Done()
			return ctx.Err()
		})
		select {
		case errChan <- err:
		default:
		}
	}()

	select {
	case <-readyChan:
		c.connected = true
		c.logger.Info().Msg("connected to Telegram")
		return nil
	case err := <-errChan:
		cancel()
		if err != nil {
			return classifyError(err)
		}
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Close disconnects and waits for the run goroutine to finish.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	cancel := c.cancelFunc
	runDone := c.runDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		if runDone != nil {
			select {
			case <-runDone:
			case <-ctx.Done():
				c.logger.Warn().Msg("timeout waiting for client shutdown")
			}
		}
	}
	c.logger.Info().Msg("disconnected from Telegram")
	return nil
}

func (c *Client) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.api == nil {
		return domain.ErrNotConnected
	}
	return nil
}

// Self validates the session and returns the account's phone number.
func (c *Client) Self(ctx context.Context) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}
	user, err := c.client.Self(ctx)
	if err != nil {
		return "", classifyError(err)
	}
	if user.Phone != "" {
		return user.Phone, nil
	}
	return c.phone, nil
}

// Resolve classifies a reference into kind and privacy.
func (c *Client) Resolve(ctx context.Context, ref domain.ChannelRef) (domain.ChannelInfo, error) {
	if err := c.ready(); err != nil {
		return domain.ChannelInfo{}, err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return domain.ChannelInfo{}, err
	}

	if hash := ref.InviteHash(); hash != "" {
		invite, err := c.api.MessagesCheckChatInvite(ctx, hash)
		if err != nil {
			return domain.ChannelInfo{}, classifyError(err)
		}
		return inviteInfo(invite), nil
	}

	channel, err := c.resolveChannel(ctx, ref)
	if err != nil {
		return domain.ChannelInfo{}, err
	}
	return domain.ChannelInfo{Kind: channelKind(channel), Private: channel.Username == ""}, nil
}

// inviteInfo maps a chat invite preview to channel info. Invite links
// are private by definition.
func inviteInfo(invite tg.ChatInviteClass) domain.ChannelInfo {
	info := domain.ChannelInfo{Kind: domain.KindGroup, Private: true}
	switch inv := invite.(type) {
	case *tg.ChatInvite:
		if inv.Broadcast {
			info.Kind = domain.KindChannel
		}
	case *tg.ChatInviteAlready:
		if ch, ok := inv.Chat.(*tg.Channel); ok && ch.Broadcast {
			info.Kind = domain.KindChannel
		}
	}
	return info
}

func channelKind(ch *tg.Channel) domain.ChannelKind {
	if ch.Megagroup {
		return domain.KindGroup
	}
	if ch.Broadcast {
		return domain.KindChannel
	}
	return domain.KindUnknown
}

// resolveChannel resolves a public reference to a channel, caching the
// access hash for the client's lifetime.
func (c *Client) resolveChannel(ctx context.Context, ref domain.ChannelRef) (*tg.Channel, error) {
	username := string(ref)
	resolved, err := c.api.ContactsResolveUsername(ctx, username)
	if err != nil {
		return nil, classifyError(err)
	}
	for _, chat := range resolved.Chats {
		if channel, ok := chat.(*tg.Channel); ok {
			c.channelsMu.Lock()
			c.channels[ref] = &tg.InputChannel{
				ChannelID:  channel.ID,
				AccessHash: channel.AccessHash,
			}
			c.channelsMu.Unlock()
			return channel, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not a channel", domain.ErrChannelNotFound, ref)
}

// inputChannel returns the cached input channel for a ref, resolving it
// on first use.
func (c *Client) inputChannel(ctx context.Context, ref domain.ChannelRef) (*tg.InputChannel, error) {
	c.channelsMu.Lock()
	cached, ok := c.channels[ref]
	c.channelsMu.Unlock()
	if ok {
		return cached, nil
	}
	if _, err := c.resolveChannel(ctx, ref); err != nil {
		return nil, err
	}
	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()
	return c.channels[ref], nil
}

// IsMember reports whether the account participates in the channel.
func (c *Client) IsMember(ctx context.Context, ref domain.ChannelRef) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return false, err
	}

	if hash := ref.InviteHash(); hash != "" {
		invite, err := c.api.MessagesCheckChatInvite(ctx, hash)
		if err != nil {
			return false, classifyError(err)
		}
		_, already := invite.(*tg.ChatInviteAlready)
		return already, nil
	}

	channel, err := c.inputChannel(ctx, ref)
	if err != nil {
		return false, err
	}
	_, err = c.api.ChannelsGetParticipant(ctx, &tg.ChannelsGetParticipantRequest{
		Channel:     channel,
		Participant: &tg.InputPeerSelf{},
	})
	if err != nil {
		err = classifyError(err)
		if errors.Is(err, domain.ErrNotParticipant) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// JoinPublic subscribes to a public channel or group.
func (c *Client) JoinPublic(ctx context.Context, ref domain.ChannelRef) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	channel, err := c.inputChannel(ctx, ref)
	if err != nil {
		return err
	}
	if _, err := c.api.ChannelsJoinChannel(ctx, channel); err != nil {
		return classifyError(err)
	}
	return nil
}

// ImportInvite joins a private channel or group by invite hash.
func (c *Client) ImportInvite(ctx context.Context, hash string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.MessagesImportChatInvite(ctx, hash); err != nil {
		return classifyError(err)
	}
	return nil
}

// Probe is a lightweight existence/access check.
func (c *Client) Probe(ctx context.Context, ref domain.ChannelRef) error {
	_, err := c.Resolve(ctx, ref)
	return err
}

// History returns up to limit most recent messages, newest first.
func (c *Client) History(ctx context.Context, ref domain.ChannelRef, limit int) ([]domain.RawMessage, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	channel, err := c.inputChannel(ctx, ref)
	if err != nil {
		return nil, err
	}

	result, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer: &tg.InputPeerChannel{
			ChannelID:  channel.ChannelID,
			AccessHash: channel.AccessHash,
		},
		Limit: limit,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	var raw []tg.MessageClass
	switch msgs := result.(type) {
	case *tg.MessagesChannelMessages:
		raw = msgs.Messages
	case *tg.MessagesMessagesSlice:
		raw = msgs.Messages
	case *tg.MessagesMessages:
		raw = msgs.Messages
	}

	items := make([]domain.RawMessage, 0, len(raw))
	for _, m := range raw {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		items = append(items, c.toRawMessage(msg, ref))
	}

	c.logger.Debug().
		Str("channel", string(ref)).
		Int("messages", len(items)).
		Msg("fetched history")
	return items, nil
}

// toRawMessage converts a wire message into the domain representation,
// keeping the original message as the opaque media handle.
func (c *Client) toRawMessage(msg *tg.Message, source domain.ChannelRef) domain.RawMessage {
	return domain.RawMessage{
		ID:          msg.ID,
		Date:        time.Unix(int64(msg.Date), 0),
		Text:        msg.Message,
		GroupID:     msg.GroupedID,
		MediaKind:   classifyMedia(msg),
		MediaHandle: msg,
		Source:      source,
	}
}

// classifyMedia detects the media kind of a message. Round video notes
// take precedence over generic video.
func classifyMedia(msg *tg.Message) domain.MediaKind {
	switch media := msg.Media.(type) {
	case *tg.MessageMediaPhoto:
		return domain.MediaPhoto
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			return domain.MediaNone
		}
		for _, attr := range doc.Attributes {
			if video, ok := attr.(*tg.DocumentAttributeVideo); ok && video.RoundMessage {
				return domain.MediaRoundVideo
			}
		}
		switch {
		case strings.HasPrefix(doc.MimeType, "video"):
			return domain.MediaVideo
		case strings.HasPrefix(doc.MimeType, "audio"):
			return domain.MediaAudio
		}
	}
	return domain.MediaNone
}

// Subscribe registers a new-message callback for the given sources and
// returns a deregistration function. Sources are resolved up front so
// the update handler can filter by channel ID without network calls.
func (c *Client) Subscribe(ctx context.Context, sources []domain.ChannelRef, fn func(domain.RawMessage)) (func(), error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	ids := make(map[int64]domain.ChannelRef, len(sources))
	for _, ref := range sources {
		channel, err := c.inputChannel(ctx, ref)
		if err != nil {
			c.logger.Warn().Err(err).Str("channel", string(ref)).Msg("cannot subscribe to channel")
			continue
		}
		ids[channel.ChannelID] = ref
	}

	c.subMu.Lock()
	c.subs = ids
	c.subFn = fn
	c.subMu.Unlock()

	c.logger.Info().Int("channels", len(ids)).Msg("subscribed to new messages")

	return func() {
		c.subMu.Lock()
		c.subs = make(map[int64]domain.ChannelRef)
		c.subFn = nil
		c.subMu.Unlock()
		c.logger.Info().Msg("unsubscribed from new messages")
	}, nil
}

// onNewChannelMessage is the update dispatcher callback. It filters by
// subscribed channel IDs and forwards matching messages. It must not
// block: the sink is expected to enqueue.
func (c *Client) onNewChannelMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok || msg.Out {
		return nil
	}
	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil
	}

	c.subMu.Lock()
	ref, subscribed := c.subs[peer.ChannelID]
	fn := c.subFn
	c.subMu.Unlock()

	if !subscribed || fn == nil {
		return nil
	}
	fn(c.toRawMessage(msg, ref))
	return nil
}

// DownloadMedia fetches the message's media into the scratch directory.
func (c *Client) DownloadMedia(ctx context.Context, msg domain.RawMessage) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	tgMsg, ok := msg.MediaHandle.(*tg.Message)
	if !ok {
		return "", fmt.Errorf("message %d has no downloadable media", msg.ID)
	}

	var (
		loc tg.InputFileLocationClass
		ext string
	)
	switch media := tgMsg.Media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.(*tg.Photo)
		if !ok {
			return "", fmt.Errorf("message %d photo is empty", msg.ID)
		}
		loc = &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     largestPhotoSize(photo),
		}
		ext = ".jpg"
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.(*tg.Document)
		if !ok {
			return "", fmt.Errorf("message %d document is empty", msg.ID)
		}
		loc = &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		}
		ext = extensionForMime(doc.MimeType)
	default:
		return "", fmt.Errorf("message %d has no downloadable media", msg.ID)
	}

	path := filepath.Join(c.downloadDir, uuid.NewString()+ext)
	if _, err := downloader.NewDownloader().Download(c.api, loc).ToPath(ctx, path); err != nil {
		return "", classifyError(err)
	}

	c.logger.Debug().Int("message_id", msg.ID).Str("path", path).Msg("downloaded media")
	return path, nil
}

// largestPhotoSize picks the size type with the biggest area.
func largestPhotoSize(photo *tg.Photo) string {
	best := ""
	bestArea := -1
	for _, s := range photo.Sizes {
		switch size := s.(type) {
		case *tg.PhotoSize:
			if area := size.W * size.H; area > bestArea {
				bestArea = area
				best = size.Type
			}
		case *tg.PhotoSizeProgressive:
			if area := size.W * size.H; area > bestArea {
				bestArea = area
				best = size.Type
			}
		}
	}
	return best
}

func extensionForMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, "video"):
		return ".mp4"
	case mime == "audio/ogg":
		return ".ogg"
	case strings.HasPrefix(mime, "audio"):
		return ".mp3"
	default:
		return ".bin"
	}
}

// SendText publishes a text-only message.
func (c *Client) SendText(ctx context.Context, target domain.ChannelRef, text string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := c.sender.Resolve(string(target)).Text(ctx, text); err != nil {
		return classifyError(err)
	}
	return nil
}

// SendFile publishes a single media file with caption.
func (c *Client) SendFile(ctx context.Context, target domain.ChannelRef, path, caption string, kind domain.MediaKind) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	file, err := c.upload.FromPath(ctx, path)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}

	media, err := mediaOption(file, caption, kind)
	if err != nil {
		return err
	}
	if _, err := c.sender.Resolve(string(target)).Media(ctx, media); err != nil {
		return classifyError(err)
	}
	return nil
}

// mediaOption builds the send shape for one uploaded file.
func mediaOption(file tg.InputFileClass, caption string, kind domain.MediaKind) (message.MediaOption, error) {
	switch kind {
	case domain.MediaPhoto:
		return message.UploadedPhoto(file, styling.Plain(caption)), nil
	case domain.MediaVideo:
		return message.Video(file, styling.Plain(caption)), nil
	case domain.MediaRoundVideo:
		// Video notes carry no caption by platform rules.
		return message.RoundVideo(file), nil
	case domain.MediaAudio:
		return message.Audio(file, styling.Plain(caption)), nil
	default:
		return nil, fmt.Errorf("unsupported media kind %s", kind)
	}
}

// SendAlbum publishes several media files as one multi-attachment post.
// The caption rides on the first attachment.
func (c *Client) SendAlbum(ctx context.Context, target domain.ChannelRef, paths []string, kinds []domain.MediaKind, caption string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	if len(paths) == 0 || len(paths) != len(kinds) {
		return fmt.Errorf("album needs matching paths and kinds, got %d/%d", len(paths), len(kinds))
	}

	items := make([]message.MultiMediaOption, 0, len(paths))
	for i, path := range paths {
		file, err := c.upload.FromPath(ctx, path)
		if err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
		itemCaption := ""
		if i == 0 {
			itemCaption = caption
		}
		item, err := albumOption(file, itemCaption, kinds[i])
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	if _, err := c.sender.Resolve(string(target)).Album(ctx, items[0], items[1:]...); err != nil {
		return classifyError(err)
	}
	return nil
}

// albumOption builds the multi-media shape for one album member. Round
// videos cannot be album members and are sent as plain video.
func albumOption(file tg.InputFileClass, caption string, kind domain.MediaKind) (message.MultiMediaOption, error) {
	switch kind {
	case domain.MediaPhoto:
		return message.UploadedPhoto(file, styling.Plain(caption)), nil
	case domain.MediaVideo, domain.MediaRoundVideo:
		return message.Video(file, styling.Plain(caption)), nil
	case domain.MediaAudio:
		return message.Audio(file, styling.Plain(caption)), nil
	default:
		return nil, fmt.Errorf("unsupported media kind %s", kind)
	}
}

// Ensure Client implements domain.ChatClient
var _ domain.ChatClient = (*Client)(nil)
