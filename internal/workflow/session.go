package workflow

import (
	"context"
	"errors"

	"vench/internal/jobs"
)

// JobSession is the storage surface one execution uses. Each execution owns
// its session exclusively.
type JobSession interface {
	Get(ctx context.Context, id int64) (*jobs.Job, error)
	Claim(ctx context.Context, id int64) (bool, error)
	SetProgress(ctx context.Context, id int64, message string) error
	SaveOutput(ctx context.Context, id int64, out jobs.Output) error
	Finish(ctx context.Context, id int64, outcome jobs.Outcome) error
	Close() error
}

// SessionOpener acquires a fresh JobSession.
type SessionOpener func(ctx context.Context) (JobSession, error)

// errNoStore is returned by the default opener when no store was supplied.
var errNoStore = errors.New("job store not configured")

func storeSessions(store *jobs.Store) SessionOpener {
	return func(ctx context.Context) (JobSession, error) {
		if store == nil {
			return nil, errNoStore
		}
		sess, err := store.Session(ctx)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}
