package telegram

import (
	"errors"
	"fmt"
	"testing"

	"github.com/atljh/TeleCloneX/internal/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"flood wait code", "rpc error code 420: FLOOD_WAIT (120)", domain.ErrFloodWait},
		{"peer flood", "rpc error code 400: PEER_FLOOD", domain.ErrFloodWait},
		{"telethon flood text", "A wait of 3600 seconds is required", domain.ErrFloodWait},
		{"already participant", "rpc error code 400: USER_ALREADY_PARTICIPANT", domain.ErrAlreadyParticipant},
		{"request sent", "rpc error code 400: INVITE_REQUEST_SENT", domain.ErrJoinRequestSent},
		{"telethon request text", "You have successfully requested to join this chat", domain.ErrJoinRequestSent},
		{"invite expired", "rpc error code 400: INVITE_HASH_EXPIRED", domain.ErrInviteExpired},
		{"telethon expired text", "The invite link is not valid anymore", domain.ErrInviteExpired},
		{"invite invalid", "rpc error code 400: INVITE_HASH_INVALID", domain.ErrInviteInvalid},
		{"username free", "rpc error code 400: USERNAME_NOT_OCCUPIED", domain.ErrChannelNotFound},
		{"bad channel", "rpc error code 400: CHANNEL_INVALID", domain.ErrChannelNotFound},
		{"private channel", "rpc error code 400: CHANNEL_PRIVATE", domain.ErrAccessForbidden},
		{"banned", "rpc error code 400: USER_BANNED_IN_CHANNEL", domain.ErrBannedInChannel},
		{"write forbidden", "rpc error code 403: CHAT_WRITE_FORBIDDEN", domain.ErrBannedInChannel},
		{"not participant", "rpc error code 400: USER_NOT_PARTICIPANT", domain.ErrNotParticipant},
		{"media forbidden", "rpc error code 403: CHAT_SEND_MEDIA_FORBIDDEN", domain.ErrMediaForbidden},
		{"dead key", "rpc error code 401: AUTH_KEY_UNREGISTERED", domain.ErrAuthTerminated},
		{"revoked session", "rpc error code 401: SESSION_REVOKED", domain.ErrAuthTerminated},
		{"deactivated", "rpc error code 403: USER_DEACTIVATED", domain.ErrAuthTerminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(errors.New(tt.raw))
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyError(%q) = %v, want sentinel %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestClassifyErrorNil(t *testing.T) {
	if got := classifyError(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestClassifyErrorUnknownPassesThrough(t *testing.T) {
	raw := errors.New("rpc error code 500: INTERNAL")
	got := classifyError(raw)
	if !errors.Is(got, raw) {
		t.Errorf("unknown error should pass through, got %v", got)
	}
}

func TestClassifyErrorKeepsOriginalMessage(t *testing.T) {
	raw := errors.New("rpc error code 420: FLOOD_WAIT (42)")
	got := classifyError(raw)
	want := fmt.Sprintf("%v: %v", domain.ErrFloodWait, raw)
	if got.Error() != want {
		t.Errorf("expected %q, got %q", want, got.Error())
	}
}

func TestClassifyErrorWrapped(t *testing.T) {
	raw := fmt.Errorf("join channel: %w", errors.New("USER_BANNED_IN_CHANNEL"))
	if !errors.Is(classifyError(raw), domain.ErrBannedInChannel) {
		t.Error("fragment inside a wrapped error should still classify")
	}
}
