package locks

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	dErrors "casedocs/pkg/domain-errors"
	"casedocs/pkg/platform/sentinel"
)

const (
	numShards        = 64
	defaultTxTimeout = 5 * time.Second
)

// InMemoryStore keeps documents in a map. RunInTx serialises callers per
// document through sharded mutexes, giving the same single-winner outcome
// as the serializable Postgres transaction.
type InMemoryStore struct {
	shards [numShards]sync.Mutex

	mu   sync.RWMutex
	docs map[string]Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]Document)}
}

// AddDocument registers a lockable document.
func (s *InMemoryStore) AddDocument(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

func (s *InMemoryStore) RunInTx(ctx context.Context, key string, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	shard := &s.shards[shardFor(key)]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, s)
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % numShards
}

func (s *InMemoryStore) Get(_ context.Context, documentID string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, sentinel.ErrNotFound)
	}
	return &doc, nil
}

func (s *InMemoryStore) GetForUpdate(ctx context.Context, documentID string) (*Document, error) {
	return s.Get(ctx, documentID)
}

func (s *InMemoryStore) SetLock(_ context.Context, documentID, workerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, sentinel.ErrNotFound)
	}
	doc.LockedBy = workerID
	doc.LockedAt = &at
	s.docs[documentID] = doc
	return nil
}

func (s *InMemoryStore) ClearLock(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, sentinel.ErrNotFound)
	}
	doc.LockedBy = ""
	doc.LockedAt = nil
	s.docs[documentID] = doc
	return nil
}

func (s *InMemoryStore) ReleaseOlderThan(_ context.Context, cutoff time.Time) ([]ReleasedLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var released []ReleasedLock
	for id, doc := range s.docs {
		if !doc.Locked() || !doc.LockedAt.Before(cutoff) {
			continue
		}
		released = append(released, ReleasedLock{DocumentID: id, LockedBy: doc.LockedBy, LockedAt: *doc.LockedAt})
		doc.LockedBy = ""
		doc.LockedAt = nil
		s.docs[id] = doc
	}
	sort.Slice(released, func(i, j int) bool { return released[i].DocumentID < released[j].DocumentID })
	return released, nil
}
