package domain

import "errors"

var (
	// ErrFloodWait is returned when the chat network rate-limits the account
	ErrFloodWait = errors.New("flood wait required")

	// ErrAlreadyParticipant is returned when the account is already a member
	ErrAlreadyParticipant = errors.New("already a participant")

	// ErrJoinRequestSent is returned when a join request is pending approval
	ErrJoinRequestSent = errors.New("join request already sent")

	// ErrInviteExpired is returned when an invite link is no longer valid
	ErrInviteExpired = errors.New("invite link expired")

	// ErrInviteInvalid is returned when an invite hash is malformed or revoked
	ErrInviteInvalid = errors.New("invite link invalid")

	// ErrChannelNotFound is returned when a reference resolves to nothing
	ErrChannelNotFound = errors.New("channel not found")

	// ErrAccessForbidden is returned when the channel is private and the
	// account lacks permission
	ErrAccessForbidden = errors.New("access to channel forbidden")

	// ErrBannedInChannel is returned when the account cannot write to or
	// participate in the channel permanently
	ErrBannedInChannel = errors.New("banned in channel")

	// ErrNotParticipant is returned by membership checks for non-members
	ErrNotParticipant = errors.New("not a participant")

	// ErrMediaForbidden is returned when the target restricts this media kind
	ErrMediaForbidden = errors.New("media forbidden in target")

	// ErrAuthTerminated is returned when the session is revoked, deactivated
	// or otherwise permanently unusable
	ErrAuthTerminated = errors.New("session terminated")

	// ErrNotConnected is returned when an operation requires a connection
	ErrNotConnected = errors.New("not connected")

	// ErrTransformFailed is returned when the media transform collaborator fails
	ErrTransformFailed = errors.New("media transform failed")

	// ErrRewriteFailed is returned when the text rewrite collaborator fails
	ErrRewriteFailed = errors.New("text rewrite failed")
)
