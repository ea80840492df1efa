package domain

import (
	"strings"
	"time"
)

// Account represents one Telegram identity operated by the scheduler.
// The session credential is owned exclusively by the relay controller
// for the account's lifetime.
type Account struct {
	Phone       string
	SessionFile string
	MetaFile    string
	Proxy       string // optional socks5 proxy, empty = direct
	Targets     []ChannelRef
}

// ChannelRef is a normalized channel or group locator: a username,
// an invite link suffix (+hash or joinchat/hash), or a t.me link.
type ChannelRef string

// Normalize strips scheme/host prefixes and query parameters from a
// channel reference.
func (r ChannelRef) Normalize() ChannelRef {
	s := strings.TrimSpace(string(r))
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "@")
	return ChannelRef(s)
}

// InviteHash extracts the invite hash from a private link reference.
// Returns empty string for public references.
func (r ChannelRef) InviteHash() string {
	s := string(r)
	if i := strings.Index(s, "joinchat/"); i >= 0 {
		return s[i+len("joinchat/"):]
	}
	if i := strings.IndexByte(s, '+'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// IsInviteLink reports whether the reference is a private invite link.
func (r ChannelRef) IsInviteLink() bool {
	return r.InviteHash() != ""
}

// ChannelKind classifies a resolved reference.
type ChannelKind int

const (
	KindUnknown ChannelKind = iota
	KindChannel
	KindGroup
)

func (k ChannelKind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// ChannelInfo is the result of resolving a ChannelRef.
type ChannelInfo struct {
	Kind    ChannelKind
	Private bool
}

// JoinResult is the closed outcome taxonomy of a join attempt.
type JoinResult int

const (
	JoinError JoinResult = iota
	Joined
	AlreadyMember
	JoinRequestPending
	SkippedInvalid
	Banned
	FloodWait
)

func (r JoinResult) String() string {
	switch r {
	case Joined:
		return "joined"
	case AlreadyMember:
		return "already_member"
	case JoinRequestPending:
		return "request_pending"
	case SkippedInvalid:
		return "skipped_invalid"
	case Banned:
		return "banned"
	case FloodWait:
		return "flood_wait"
	default:
		return "error"
	}
}

// CountsAsActive reports whether a join outcome adds the channel to the
// account's active set. Request-pending does not count: membership is
// not granted until the request is approved.
func (r JoinResult) CountsAsActive() bool {
	return r == Joined || r == AlreadyMember
}

// SendResult is the closed outcome taxonomy of a publish attempt.
type SendResult int

const (
	SendError SendResult = iota
	Sent
	SkipTarget
	BannedInTarget
	SendFloodWait
)

func (r SendResult) String() string {
	switch r {
	case Sent:
		return "sent"
	case SkipTarget:
		return "skip"
	case BannedInTarget:
		return "banned"
	case SendFloodWait:
		return "flood_wait"
	default:
		return "error"
	}
}

// MediaKind classifies the single media item of a content unit.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaPhoto
	MediaVideo
	MediaRoundVideo
	MediaAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	case MediaRoundVideo:
		return "round_video"
	case MediaAudio:
		return "audio"
	default:
		return "none"
	}
}

// RawMessage is one source message as seen by the chat-network adapter.
// MediaHandle is an adapter-owned opaque descriptor used for download.
type RawMessage struct {
	ID          int
	Date        time.Time
	Text        string
	GroupID     int64
	MediaKind   MediaKind
	MediaHandle any
	Source      ChannelRef
}

// ContentUnit is one message's payload after extraction. OriginalPath
// keeps the pre-transform scratch file so both copies can be cleaned up.
type ContentUnit struct {
	Text            string
	MediaPath       string
	OriginalPath    string
	MediaKind       MediaKind
	GroupID         int64
	SourceMessageID int
}

// Empty reports whether the unit has neither text nor media. Empty
// units must never reach the publisher.
func (u ContentUnit) Empty() bool {
	return u.Text == "" && u.MediaKind == MediaNone
}

// RelayMode selects between bounded history replay and live relay.
type RelayMode string

const (
	ModeHistory RelayMode = "history"
	ModeLive    RelayMode = "live"
)

// RunOutcome is the terminal state of one account's relay run.
type RunOutcome int

const (
	RunDone RunOutcome = iota
	RunNothingToDo
	RunPausedFlood
	RunAuthTerminal
	RunFatalError
)

func (o RunOutcome) String() string {
	switch o {
	case RunDone:
		return "done"
	case RunNothingToDo:
		return "nothing_to_do"
	case RunPausedFlood:
		return "paused_flood"
	case RunAuthTerminal:
		return "auth_terminal"
	default:
		return "fatal_error"
	}
}

// RelayEvent is the audit record emitted after a successful publish.
type RelayEvent struct {
	AccountPhone string     `json:"account_phone"`
	Source       ChannelRef `json:"source"`
	Target       ChannelRef `json:"target"`
	MessageID    int        `json:"message_id"`
	GroupID      int64      `json:"group_id,omitempty"`
	MediaKind    string     `json:"media_kind"`
	Album        bool       `json:"album"`
	PublishedAt  time.Time  `json:"published_at"`
}
