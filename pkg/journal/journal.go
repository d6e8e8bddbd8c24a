// Package journal keeps a bounded sqlite history of the events relayed to the
// host so they can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/sirupsen/logrus"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

const (
	MemoryPath = ":memory:"

	dirPermissions  = 0750
	filePermissions = 0600

	busyTimeoutMs     = 5000
	connectionTimeout = 5 * time.Second
	recordTimeout     = 5 * time.Second

	maxPrealloc = 256
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	context_id TEXT NOT NULL,
	origin     TEXT NOT NULL,
	fired_at   TEXT NOT NULL,
	data_json  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

// Entry is one recorded event.
type Entry struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	ContextID string          `json:"context_id"`
	Origin    string          `json:"origin"`
	TimeFired time.Time       `json:"time_fired"`
	Data      json.RawMessage `json:"data"`
}

type Journal struct {
	db        *sql.DB
	path      string
	retention int
	logger    *logrus.Logger

	mutex  sync.Mutex
	detach func()
}

// Open opens (creating if needed) the journal at path. Only the newest
// retention events are kept.
func Open(path string, retention int, logger *logrus.Logger) (*Journal, error) {
	if retention < 1 {
		return nil, fmt.Errorf("journal retention must be positive (got %d)", retention)
	}

	connStr := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
		connStr = fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMs)
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One connection: an in-memory database lives and dies with it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("verifying journal connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	if path != MemoryPath {
		_ = os.Chmod(path, filePermissions)
	}

	return &Journal{
		db:        db,
		path:      path,
		retention: retention,
		logger:    logger,
	}, nil
}

func (j *Journal) Path() string {
	return j.path
}

// Attach records every event the bus relays to the host. Local-only events
// such as host start and stop are not recorded.
func (j *Journal) Attach(bus *homeassistant.Bus) {
	detach := bus.Listen(homeassistant.MatchAll, func(event homeassistant.Event) {
		if !event.Remote() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		if err := j.Record(ctx, event); err != nil {
			j.logger.WithError(err).WithField("event_type", event.EventType).Error("Failed to record event")
		}
	})

	j.mutex.Lock()
	previous := j.detach
	j.detach = detach
	j.mutex.Unlock()

	if previous != nil {
		previous()
	}
}

// Record stores event and prunes anything older than the retention window.
func (j *Journal) Record(ctx context.Context, event homeassistant.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encoding %s data: %w", event.EventType, err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (event_type, context_id, origin, fired_at, data_json) VALUES (?, ?, ?, ?, ?)`,
		event.EventType,
		event.Context.ID,
		event.Origin,
		event.TimeFired.UTC().Format(time.RFC3339Nano),
		string(data),
	); err != nil {
		return fmt.Errorf("inserting %s: %w", event.EventType, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM events WHERE id NOT IN (SELECT id FROM events ORDER BY id DESC LIMIT ?)`,
		j.retention,
	); err != nil {
		return fmt.Errorf("pruning journal: %w", err)
	}

	return tx.Commit()
}

// Recent returns up to limit events, newest first. An eventType of "" matches
// every type. limit is capped at the retention, which is all the journal holds.
func (j *Journal) Recent(ctx context.Context, eventType string, limit int) ([]Entry, error) {
	if limit < 1 || limit > j.retention {
		limit = j.retention
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, event_type, context_id, origin, fired_at, data_json
		   FROM events
		  WHERE ? = '' OR event_type = ?
		  ORDER BY id DESC
		  LIMIT ?`,
		eventType, eventType, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, min(limit, maxPrealloc))
	for rows.Next() {
		var (
			entry   Entry
			firedAt string
			data    string
		)
		if err := rows.Scan(&entry.ID, &entry.EventType, &entry.ContextID, &entry.Origin, &firedAt, &data); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		entry.TimeFired, err = time.Parse(time.RFC3339Nano, firedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing fired_at of event %d: %w", entry.ID, err)
		}
		entry.Data = json.RawMessage(data)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (j *Journal) Count(ctx context.Context) (int, error) {
	var count int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting journal: %w", err)
	}
	return count, nil
}

// Start implements the application service contract. Recording begins with
// Attach.
func (j *Journal) Start() error {
	j.logger.WithField("path", j.path).Info("Event journal ready")
	return nil
}

// Stop detaches from the bus and closes the database.
func (j *Journal) Stop() error {
	j.mutex.Lock()
	detach := j.detach
	j.detach = nil
	j.mutex.Unlock()

	if detach != nil {
		detach()
	}

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	return nil
}
