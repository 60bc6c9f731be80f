package gateway

import "errors"

var (
	// ErrConfiguration means the gateway cannot be built from the given settings.
	ErrConfiguration = errors.New("gateway misconfigured")
	// ErrAuthentication means the provider rejected or lacks an API key.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNetwork means no reachable strategy produced a reply.
	ErrNetwork = errors.New("model backend unreachable")
)
