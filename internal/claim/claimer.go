package claim

import "context"

// RemoteSession is an established session against the remote service.
type RemoteSession interface {
	// Claim performs the bonus claim. A nil error is success. Recognised
	// failures: ErrUnavailable (no claim control), *FloodWaitError
	// (remote backoff), context deadline errors. Anything else is
	// terminal for the account.
	Claim(ctx context.Context) error

	// Close tears the session down. Best-effort; callers ignore the error.
	Close() error
}

// Claimer establishes remote sessions from stored credentials. The
// protocol client behind it is a black box to this package.
type Claimer interface {
	Establish(ctx context.Context, credential string) (RemoteSession, error)
}
