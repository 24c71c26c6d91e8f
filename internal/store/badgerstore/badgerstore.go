// Package badgerstore persists the chat collections in an embedded BadgerDB.
//
// Key layout:
//
//	participant:{name}          JSON participantRecord
//	message:{seq 20 digits}     store.EncodeMessage JSON, zero padded so that
//	                            lexicographic order is creation order
//	seq:message                 badger.Sequence backing the message counter
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"batepapo/internal/model"
	"batepapo/internal/store"
)

const (
	participantPrefix = "participant:"
	messagePrefix     = "message:"
	messageSeqKey     = "seq:message"
	seqBandwidth      = 128

	// optimistic transactions are retried this many times on badger.ErrConflict
	maxConflictRetries = 16
)

// Store implements store.Store on BadgerDB.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence

	// appendMu keeps sequence allocation and commit in one critical section so
	// a later batch can never become visible before an earlier one.
	appendMu sync.Mutex
}

var _ store.Store = (*Store)(nil)

type participantRecord struct {
	Name     string `json:"name"`
	LastSeen int64  `json:"last_seen"`
}

// Open opens (or creates) the database at path. An empty path keeps
// everything in memory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	seq, err := db.GetSequence([]byte(messageSeqKey), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

func participantKey(name string) []byte {
	return []byte(participantPrefix + name)
}

func messageKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, seq))
}

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction touched the same keys.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) InsertParticipantIfAbsent(ctx context.Context, p model.Participant) error {
	data, err := json.Marshal(participantRecord{Name: p.Name, LastSeen: p.LastSeen.UnixNano()})
	if err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		key := participantKey(p.Name)
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return store.ErrAlreadyExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *Store) GetParticipant(ctx context.Context, name string) (model.Participant, error) {
	if err := ctx.Err(); err != nil {
		return model.Participant{}, err
	}
	var rec participantRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return model.Participant{}, err
	}
	return rec.toParticipant(), nil
}

func (s *Store) TouchParticipant(ctx context.Context, name string, seen time.Time) error {
	data, err := json.Marshal(participantRecord{Name: name, LastSeen: seen.UnixNano()})
	if err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		key := participantKey(name)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *Store) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var participants []model.Participant
	err := s.db.View(func(txn *badger.Txn) error {
		return scanParticipants(txn, func(_ []byte, rec participantRecord) {
			participants = append(participants, rec.toParticipant())
		})
	})
	return participants, err
}

func (s *Store) DeleteParticipantsSeenBefore(ctx context.Context, cutoff time.Time) ([]model.Participant, error) {
	var evicted []model.Participant
	err := s.update(ctx, func(txn *badger.Txn) error {
		evicted = evicted[:0]
		var keys [][]byte
		err := scanParticipants(txn, func(key []byte, rec participantRecord) {
			if rec.LastSeen < cutoff.UnixNano() {
				keys = append(keys, key)
				evicted = append(evicted, rec.toParticipant())
			}
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

// scanParticipants walks every participant key. Keys passed to fn are copies.
func scanParticipants(txn *badger.Txn, fn func(key []byte, rec participantRecord)) error {
	prefix := []byte(participantPrefix)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var rec participantRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		fn(item.KeyCopy(nil), rec)
	}
	return nil
}

func (s *Store) InsertMessages(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	keys := make([][]byte, len(msgs))
	values := make([][]byte, len(msgs))
	for i, msg := range msgs {
		next, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("badger sequence next: %w", err)
		}
		data, err := store.EncodeMessage(msg)
		if err != nil {
			return err
		}
		keys[i], values[i] = messageKey(next), data
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for i := range keys {
			if err := txn.Set(keys[i], values[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListMessages(ctx context.Context) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var messages []model.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				msg, err := store.DecodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	seqErr := s.seq.Release()
	if err := s.db.Close(); err != nil {
		return err
	}
	return seqErr
}

func (r participantRecord) toParticipant() model.Participant {
	return model.Participant{Name: r.Name, LastSeen: time.Unix(0, r.LastSeen)}
}
