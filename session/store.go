package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
	ErrRedisUnavailable = errors.New("session store unavailable")

	// ErrNotFound is an exported constant or variable used by the authentication engine.
	ErrNotFound = errors.New("session not found")

	// ErrCurrentNotFound is an exported constant or variable used by the authentication engine.
	ErrCurrentNotFound = errors.New("current session not found")
)

// Store defines a public type used by authcore APIs.
//
// Store instances are intended to be configured during initialization and then treated
// as immutable unless documented otherwise.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	cap       int
	retention time.Duration
}

// NewStore describes the new store operation and its observable behavior.
//
// NewStore does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func NewStore(client redis.UniversalClient, prefix string, cap int, retention time.Duration) *Store {
	if prefix == "" {
		prefix = "as"
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Store{redis: client, prefix: prefix, cap: cap, retention: retention}
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + "k:" + id
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

// Save persists the record and indexes it under the owner, evicting the owner's
// least-recently-active sessions first when the cap would be exceeded. It returns the
// IDs it deactivated.
func (s *Store) Save(ctx context.Context, record *Session) ([]string, error) {
	if record == nil || record.SessionID == "" || record.UserID == "" {
		return nil, fmt.Errorf("%w: record missing identifiers", ErrRedisUnavailable)
	}
	var evicted []string
	if s.cap > 0 {
		count, err := s.redis.ZCard(ctx, s.userKey(record.UserID)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(s.cap) {
			oldest, err := s.redis.ZRange(ctx, s.userKey(record.UserID), 0, count-int64(s.cap)).Result()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			if err := s.Deactivate(ctx, record.UserID, oldest); err != nil {
				return nil, err
			}
			evicted = oldest
		}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(record.SessionID), payload, s.retention)
		pipe.ZAdd(ctx, s.userKey(record.UserID), redis.Z{
			Score:  float64(record.LastActive.UnixMilli()),
			Member: record.SessionID,
		})
		pipe.Expire(ctx, s.userKey(record.UserID), s.retention)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return evicted, nil
}

// Get describes the get operation and its observable behavior.
//
// Get may return an error when input validation, dependency calls, or security checks
// fail. Get does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	raw, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	var record Session
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: corrupt record: %v", ErrRedisUnavailable, err)
	}
	return &record, nil
}

// Touch advances the record's last-active time to now, in both the record and the
// owner's index. Missing or deactivated sessions are a no-op.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	record, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !record.IsActive {
		return nil
	}
	record.LastActive = time.Now()
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sessionID), payload, redis.KeepTTL)
		pipe.ZAdd(ctx, s.userKey(record.UserID), redis.Z{
			Score:  float64(record.LastActive.UnixMilli()),
			Member: sessionID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CountActive describes the count active operation and its observable behavior.
//
// CountActive may return an error when input validation, dependency calls, or security
// checks fail. CountActive does not mutate shared global state and can be used
// concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CountActive(ctx context.Context, userID string) (int64, error) {
	count, err := s.redis.ZCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// OldestActive returns up to n session IDs for the user, least recently active first.
func (s *Store) OldestActive(ctx context.Context, userID string, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := s.redis.ZRange(ctx, s.userKey(userID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// ListForUser returns the user's session records, most recently active first. Index
// entries whose record has lapsed are pruned as they are encountered.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				_ = s.redis.ZRem(ctx, s.userKey(userID), id).Err()
				continue
			}
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// Infos maps stored records into the caller-facing read model, flagging currentID.
func Infos(records []*Session, currentID string) []Info {
	out := make([]Info, 0, len(records))
	for _, r := range records {
		info := r.info()
		info.Current = r.SessionID == currentID
		out = append(out, info)
	}
	return out
}

// Deactivate marks the given sessions inactive and drops them from the owner's active
// index. Records stay readable until their retention TTL lapses. IDs whose record is
// already gone are dropped from the index and otherwise ignored.
func (s *Store) Deactivate(ctx context.Context, userID string, sessionIDs []string) error {
	for _, id := range sessionIDs {
		record, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				_ = s.redis.ZRem(ctx, s.userKey(userID), id).Err()
				continue
			}
			return err
		}
		record.IsActive = false
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.sessionKey(id), payload, s.retention)
			pipe.ZRem(ctx, s.userKey(userID), id)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Terminate deactivates one session. The session must exist, be active, and belong to
// userID; otherwise ErrNotFound is returned, so one user cannot terminate another's
// session by guessing IDs.
func (s *Store) Terminate(ctx context.Context, userID, sessionID string) error {
	record, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if record.UserID != userID || !record.IsActive {
		return ErrNotFound
	}
	return s.Deactivate(ctx, userID, []string{sessionID})
}

// TerminateAllExcept deactivates every active session of the user except currentID and
// returns how many it closed. The anchor session must exist, be active, and belong to
// userID; otherwise ErrCurrentNotFound is returned and nothing is closed.
func (s *Store) TerminateAllExcept(ctx context.Context, userID, currentID string) (int, error) {
	current, err := s.Get(ctx, currentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrCurrentNotFound
		}
		return 0, err
	}
	if current.UserID != userID || !current.IsActive {
		return 0, ErrCurrentNotFound
	}
	ids, err := s.redis.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	victims := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != currentID {
			victims = append(victims, id)
		}
	}
	if err := s.Deactivate(ctx, userID, victims); err != nil {
		return 0, err
	}
	return len(victims), nil
}

// Ping describes the ping operation and its observable behavior.
//
// Ping may return an error when input validation, dependency calls, or security checks
// fail. Ping does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
