package realtime

import "errors"

var (
	// ErrJoinTimeout is returned when the join handshake is not acknowledged in time.
	ErrJoinTimeout = errors.New("join timed out")

	// ErrUnauthorized is returned when the server rejects credentials.
	// It is the only connectivity failure that is not retried.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrJoinRejected is returned when the server refuses the join for any other reason.
	ErrJoinRejected = errors.New("join rejected")

	// ErrDisconnected is returned to pending callers when the socket goes away mid-handshake.
	ErrDisconnected = errors.New("disconnected")

	// ErrNotConnected is returned by Push when no topic is joined.
	ErrNotConnected = errors.New("not connected")

	// ErrNoUser is returned by Connect when the account or user id is missing.
	ErrNoUser = errors.New("account and user ids are required")

	// ErrClosed is returned once the channel has been closed.
	ErrClosed = errors.New("channel closed")

	// ErrMalformedFrame is returned for frames that are not five element arrays.
	ErrMalformedFrame = errors.New("malformed frame")
)

var unauthorizedReasons = map[string]bool{
	"unauthorized":  true,
	"forbidden":     true,
	"invalid_token": true,
}
