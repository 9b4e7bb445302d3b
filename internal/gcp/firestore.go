package gcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/routeingest/internal/models"
)

// lockPollInterval is how often a waiting Acquire re-checks the lease.
const lockPollInterval = 500 * time.Millisecond

var errLockHeld = errors.New("lock held by another owner")

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, eris.New("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create Firestore client")
	}

	return client, nil
}

// lease is the lock document.
type lease struct {
	Owner      string    `firestore:"owner"`
	AcquiredAt time.Time `firestore:"acquiredAt"`
	ExpiresAt  time.Time `firestore:"expiresAt"`
}

// available reports whether owner may take the lease at now.
func (l lease) available(owner string, now time.Time) bool {
	return l.Owner == "" || l.Owner == owner || !now.Before(l.ExpiresAt)
}

// leaseStore takes and drops the lease document atomically.
type leaseStore interface {
	// take claims the lease for owner, or returns errLockHeld.
	take(ctx context.Context, owner string, now time.Time, ttl time.Duration) error
	// drop removes the lease if owner still holds it.
	drop(ctx context.Context, owner string) error
}

// FirestoreLock is a named lease lock. A holder that dies without releasing
// blocks others only until the lease expires.
type FirestoreLock struct {
	leases   leaseStore
	leaseTTL time.Duration
	now      func() time.Time
	poll     time.Duration

	mu    sync.Mutex
	owner string
}

// NewFirestoreLock creates the lock stored at collection/name.
func NewFirestoreLock(client *firestore.Client, collection, name string, leaseTTL time.Duration) *FirestoreLock {
	return newLeaseLock(&firestoreLeases{client: client, doc: client.Collection(collection).Doc(name)}, leaseTTL)
}

func newLeaseLock(leases leaseStore, leaseTTL time.Duration) *FirestoreLock {
	return &FirestoreLock{leases: leases, leaseTTL: leaseTTL, now: time.Now, poll: lockPollInterval}
}

// Acquire tries to take the lease until wait elapses.
func (l *FirestoreLock) Acquire(ctx context.Context, wait time.Duration) (bool, error) {
	owner := uuid.NewString()
	deadline := l.now().Add(wait)

	for {
		err := l.leases.take(ctx, owner, l.now(), l.leaseTTL)
		if err == nil {
			l.mu.Lock()
			l.owner = owner
			l.mu.Unlock()
			return true, nil
		}
		if !errors.Is(err, errLockHeld) {
			return false, eris.Wrap(err, "acquire lease")
		}
		if !l.now().Add(l.poll).Before(deadline) {
			return false, nil
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}

// Release deletes the lease if this lock still owns it.
func (l *FirestoreLock) Release(ctx context.Context) error {
	l.mu.Lock()
	owner := l.owner
	l.owner = ""
	l.mu.Unlock()
	if owner == "" {
		return nil
	}
	if err := l.leases.drop(ctx, owner); err != nil {
		return eris.Wrap(err, "release lease")
	}
	return nil
}

// firestoreLeases keeps the lease in one document, updated in transactions.
type firestoreLeases struct {
	client *firestore.Client
	doc    *firestore.DocumentRef
}

func (f *firestoreLeases) current(tx *firestore.Transaction) (lease, error) {
	var current lease
	snap, err := tx.Get(f.doc)
	switch {
	case status.Code(err) == codes.NotFound:
		return current, nil
	case err != nil:
		return current, err
	}
	err = snap.DataTo(&current)
	return current, err
}

func (f *firestoreLeases) take(ctx context.Context, owner string, now time.Time, ttl time.Duration) error {
	return f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := f.current(tx)
		if err != nil {
			return err
		}
		if !current.available(owner, now) {
			return errLockHeld
		}
		return tx.Set(f.doc, lease{Owner: owner, AcquiredAt: now, ExpiresAt: now.Add(ttl)})
	})
}

func (f *firestoreLeases) drop(ctx context.Context, owner string) error {
	return f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := f.current(tx)
		if err != nil {
			return err
		}
		if current.Owner == "" {
			return nil
		}
		if current.Owner != owner {
			zap.L().Warn("lease taken over before release", zap.String("owner", current.Owner))
			return nil
		}
		return tx.Delete(f.doc)
	})
}

// FirestoreLogSink appends operational log entries to a collection.
type FirestoreLogSink struct {
	coll *firestore.CollectionRef
}

// NewFirestoreLogSink creates a sink writing into collection.
func NewFirestoreLogSink(client *firestore.Client, collection string) *FirestoreLogSink {
	return &FirestoreLogSink{coll: client.Collection(collection)}
}

// Append adds one entry.
func (s *FirestoreLogSink) Append(ctx context.Context, entry models.LogEntry) error {
	if _, _, err := s.coll.Add(ctx, entry); err != nil {
		return eris.Wrap(err, "append operational log entry")
	}
	return nil
}
