// Package sqlstore keeps the shared store in a MySQL table through gorm.
// Watchers poll for rows touched by other origins.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stake-plus/base-buddies/src/store"
)

const DefaultPollInterval = 2 * time.Second

// watchLag is how far behind the cursor each poll re-reads, so rows
// stamped before a later row but committed after it are still seen.
const watchLag = 5 * time.Second

var ErrNoDB = errors.New("sqlstore: no database configured")

func init() {
	store.Register("mysql", Factory{})
}

type Factory struct{}

func (Factory) Build(ctx context.Context, opts store.Options) (store.Interface, error) {
	if opts.DB == nil {
		return nil, ErrNoDB
	}
	return New(ctx, opts.DB, opts.PollInterval)
}

// Entry is one key. Deletes leave a tombstone so pollers see them.
type Entry struct {
	Key       string    `gorm:"primaryKey;size:191"`
	Value     []byte    `gorm:"type:mediumblob"`
	Deleted   bool      `gorm:"not null;default:false"`
	Origin    string    `gorm:"size:64"`
	UpdatedAt time.Time `gorm:"index;precision:6"`
}

func (Entry) TableName() string { return "kv_entries" }

type Store struct {
	db     *gorm.DB
	origin string
	poll   time.Duration
}

var _ store.Interface = (*Store)(nil)

// New migrates kv_entries and returns a client with a fresh origin.
func New(ctx context.Context, db *gorm.DB, poll time.Duration) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Store{db: db, origin: uuid.NewString(), poll: poll}, nil
}

func (s *Store) Origin() string { return s.origin }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var e Entry
	err := s.db.WithContext(ctx).Where("`key` = ? AND deleted = ?", key, false).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

// Set stamps rows with the database clock so every client orders them
// the same way.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.db.WithContext(ctx).Exec(
		"INSERT INTO kv_entries (`key`, value, deleted, origin, updated_at) VALUES (?, ?, ?, ?, NOW(6)) "+
			"ON DUPLICATE KEY UPDATE value = VALUES(value), deleted = VALUES(deleted), origin = VALUES(origin), updated_at = VALUES(updated_at)",
		key, value, false, s.origin).Error
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res := s.db.WithContext(ctx).Model(&Entry{}).
		Where("`key` = ? AND deleted = ?", key, false).
		Updates(map[string]any{"value": nil, "deleted": true, "origin": s.origin, "updated_at": gorm.Expr("NOW(6)")})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}
	return nil
}

func (s *Store) Watch(ctx context.Context, fn func(store.Change)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var start time.Time
	if err := s.db.WithContext(ctx).Raw("SELECT NOW(6)").Scan(&start).Error; err != nil {
		return fmt.Errorf("sqlstore: read clock: %w", err)
	}
	cur := newCursor(start)
	go func() {
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pollOnce(ctx, cur, fn)
			}
		}
	}()
	return nil
}

func (s *Store) pollOnce(ctx context.Context, cur *cursor, fn func(store.Change)) {
	var rows []Entry
	err := s.db.WithContext(ctx).
		Where("updated_at > ?", cur.from()).
		Order("updated_at").
		Find(&rows).Error
	if err != nil {
		return
	}
	for _, e := range cur.admit(rows) {
		if e.Origin == s.origin {
			continue
		}
		fn(store.Change{Key: e.Key, Value: e.Value, Deleted: e.Deleted, Origin: e.Origin})
	}
}

// cursor tracks what a watcher has delivered. Polls overlap by watchLag
// and seen drops rows already handed out.
type cursor struct {
	start time.Time
	since time.Time
	seen  map[string]time.Time
}

func newCursor(start time.Time) *cursor {
	return &cursor{start: start, since: start, seen: map[string]time.Time{}}
}

// from is the lower bound of the next poll, never before the watch began.
func (c *cursor) from() time.Time {
	from := c.since.Add(-watchLag)
	if from.Before(c.start) {
		return c.start
	}
	return from
}

// admit returns the rows not delivered yet and advances the cursor.
func (c *cursor) admit(rows []Entry) []Entry {
	var out []Entry
	for _, e := range rows {
		if last, ok := c.seen[e.Key]; ok && !e.UpdatedAt.After(last) {
			continue
		}
		c.seen[e.Key] = e.UpdatedAt
		if e.UpdatedAt.After(c.since) {
			c.since = e.UpdatedAt
		}
		out = append(out, e)
	}
	floor := c.from()
	for k, at := range c.seen {
		if at.Before(floor) {
			delete(c.seen, k)
		}
	}
	return out
}

// Close leaves the shared *gorm.DB open.
func (s *Store) Close() error { return nil }
