package telegram

import (
	"fmt"
	"strings"

	"github.com/gotd/td/tgerr"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// classification maps a raw RPC error fragment to a typed domain error.
// The table is the single place where collaborator error strings are
// interpreted; new fragments are added here, never in business logic.
type classification struct {
	fragment string
	sentinel error
}

// rpcErrorTable is ordered: the first matching fragment wins. MTProto
// error codes come first, human-readable Telethon-era fragments follow
// as a fallback for wrapped errors.
var rpcErrorTable = []classification{
	{"FLOOD_WAIT", domain.ErrFloodWait},
	{"PEER_FLOOD", domain.ErrFloodWait},
	{"A wait of", domain.ErrFloodWait},

	{"USER_ALREADY_PARTICIPANT", domain.ErrAlreadyParticipant},
	{"is already a participant", domain.ErrAlreadyParticipant},

	{"INVITE_REQUEST_SENT", domain.ErrJoinRequestSent},
	{"successfully requested to join", domain.ErrJoinRequestSent},

	{"INVITE_HASH_EXPIRED", domain.ErrInviteExpired},
	{"is not valid anymore", domain.ErrInviteExpired},

	{"INVITE_HASH_INVALID", domain.ErrInviteInvalid},
	{"INVITE_HASH_EMPTY", domain.ErrInviteInvalid},

	{"USERNAME_NOT_OCCUPIED", domain.ErrChannelNotFound},
	{"USERNAME_INVALID", domain.ErrChannelNotFound},
	{"CHANNEL_INVALID", domain.ErrChannelNotFound},
	{"PEER_ID_INVALID", domain.ErrChannelNotFound},

	{"CHANNEL_PRIVATE", domain.ErrAccessForbidden},
	{"private and you lack permission", domain.ErrAccessForbidden},

	{"USER_BANNED_IN_CHANNEL", domain.ErrBannedInChannel},
	{"CHAT_WRITE_FORBIDDEN", domain.ErrBannedInChannel},
	{"CHAT_RESTRICTED", domain.ErrBannedInChannel},
	{"You can't write", domain.ErrBannedInChannel},

	{"USER_NOT_PARTICIPANT", domain.ErrNotParticipant},

	{"CHAT_SEND_MEDIA_FORBIDDEN", domain.ErrMediaForbidden},
	{"CHAT_SEND_PHOTOS_FORBIDDEN", domain.ErrMediaForbidden},
	{"CHAT_SEND_PLAIN_FORBIDDEN", domain.ErrMediaForbidden},
	{"TOPIC_CLOSED", domain.ErrMediaForbidden},

	{"AUTH_KEY_UNREGISTERED", domain.ErrAuthTerminated},
	{"SESSION_REVOKED", domain.ErrAuthTerminated},
	{"SESSION_EXPIRED", domain.ErrAuthTerminated},
	{"USER_DEACTIVATED", domain.ErrAuthTerminated},
}

// classifyError translates a raw gotd error into a domain sentinel,
// wrapping it so the original message survives for logging. Unmatched
// errors pass through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	// Typed flood detection first: gotd parses FLOOD_WAIT into tgerr.
	if _, ok := tgerr.AsFloodWait(err); ok {
		return fmt.Errorf("%w: %v", domain.ErrFloodWait, err)
	}
	msg := err.Error()
	for _, c := range rpcErrorTable {
		if strings.Contains(msg, c.fragment) {
			return fmt.Errorf("%w: %v", c.sentinel, err)
		}
	}
	return err
}
