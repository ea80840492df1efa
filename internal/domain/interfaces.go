package domain

import "context"

// ChatClient is the capability surface the relay core consumes from the
// chat-network collaborator. Implementations translate raw transport
// errors into the sentinel errors of this package at the boundary, so
// callers never match on error strings.
type ChatClient interface {
	// Self validates the session credential and returns the account's
	// phone number. ErrAuthTerminated means the session is unusable.
	Self(ctx context.Context) (string, error)

	// Resolve classifies a reference into kind and privacy.
	Resolve(ctx context.Context, ref ChannelRef) (ChannelInfo, error)

	// IsMember reports whether the account participates in the channel.
	IsMember(ctx context.Context, ref ChannelRef) (bool, error)

	// JoinPublic subscribes to a public channel or group.
	JoinPublic(ctx context.Context, ref ChannelRef) error

	// ImportInvite joins a private channel or group by invite hash.
	ImportInvite(ctx context.Context, hash string) error

	// Probe is a lightweight existence/access check for a channel.
	Probe(ctx context.Context, ref ChannelRef) error

	// History returns up to limit most recent messages, newest first.
	History(ctx context.Context, ref ChannelRef, limit int) ([]RawMessage, error)

	// Subscribe registers a new-message callback for the given source
	// channels and returns a deregistration function. The callback runs
	// on the client's update goroutine and must not block.
	Subscribe(ctx context.Context, sources []ChannelRef, fn func(RawMessage)) (func(), error)

	// DownloadMedia fetches the message's media into the scratch
	// directory and returns the local path.
	DownloadMedia(ctx context.Context, msg RawMessage) (string, error)

	// SendText publishes a text-only message.
	SendText(ctx context.Context, target ChannelRef, text string) error

	// SendFile publishes a single media file with caption. Round videos
	// are sent as video notes and carry no caption.
	SendFile(ctx context.Context, target ChannelRef, path, caption string, kind MediaKind) error

	// SendAlbum publishes several media files as one multi-attachment
	// post with a single caption.
	SendAlbum(ctx context.Context, target ChannelRef, paths []string, kinds []MediaKind, caption string) error

	// Close disconnects the client.
	Close(ctx context.Context) error
}

// Rewriter is the language-rewrite collaborator.
type Rewriter interface {
	// Rewrite paraphrases text. Inputs shorter than the collaborator's
	// minimum length are returned unchanged.
	Rewrite(ctx context.Context, text string) (string, error)
}

// MediaTransformer is the media uniquification collaborator.
type MediaTransformer interface {
	// Transform produces a perceptually-unique copy of the media file
	// and returns the new path. The original file is left in place.
	Transform(ctx context.Context, path string, kind MediaKind) (string, error)
}

// BlacklistStore is the durable set of (account, channel) pairs that
// must never be rejoined. Append-only; safe for concurrent writers.
type BlacklistStore interface {
	Contains(phone string, ref ChannelRef) bool
	Add(phone string, ref ChannelRef) error
}

// EventSink receives relay audit events. Implementations must tolerate
// concurrent publishers from different accounts.
type EventSink interface {
	Published(ctx context.Context, ev RelayEvent) error
	Close() error
}

// SessionRepository discovers account session files and quarantines
// terminally failed accounts.
type SessionRepository interface {
	// Discover lists available accounts from the session directory.
	Discover() ([]Account, error)

	// Quarantine moves the account's session and metadata files into
	// the quarantine location for the given terminal reason, so
	// subsequent runs skip the account.
	Quarantine(acc Account, reason RunOutcome) error
}
