package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"tdgate/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_key TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	auth_state TEXT NOT NULL DEFAULT 'unknown',
	created_at INTEGER NOT NULL,
	last_seen_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_account_id ON sessions(account_id);
`

// Database persists the session registry with sqlite. Account ids are
// encrypted at rest when field encryption is enabled.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveSession inserts or refreshes a session record.
func (d *Database) SaveSession(ctx context.Context, rec models.SessionRecord) error {
	encryptedAccountID, err := d.encryptor.EncryptForLookupIfEnabled(rec.AccountID)
	if err != nil {
		return fmt.Errorf("failed to encrypt account id: %w", err)
	}

	query := `
		INSERT INTO sessions (session_key, account_id, auth_state, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			auth_state = excluded.auth_state,
			last_seen_at = excluded.last_seen_at
	`
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query,
			rec.SessionKey, encryptedAccountID, rec.AuthState, rec.CreatedAt, rec.LastSeenAt)
		return err
	}, "save session")
}

// GetSession fetches a session by key. A missing session returns nil
// without error.
func (d *Database) GetSession(ctx context.Context, sessionKey string) (*models.SessionRecord, error) {
	query := `
		SELECT session_key, account_id, auth_state, created_at, last_seen_at
		FROM sessions WHERE session_key = ?
	`
	var rec models.SessionRecord
	err := d.db.QueryRowContext(ctx, query, sessionKey).Scan(
		&rec.SessionKey, &rec.AccountID, &rec.AuthState, &rec.CreatedAt, &rec.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	accountID, err := d.encryptor.DecryptIfEnabled(rec.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt account id: %w", err)
	}
	rec.AccountID = accountID
	return &rec, nil
}

// ListSessions returns every known session, most recently seen first.
func (d *Database) ListSessions(ctx context.Context) ([]models.SessionRecord, error) {
	query := `
		SELECT session_key, account_id, auth_state, created_at, last_seen_at
		FROM sessions ORDER BY last_seen_at DESC
	`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionRecord
	for rows.Next() {
		var rec models.SessionRecord
		if err := rows.Scan(&rec.SessionKey, &rec.AccountID, &rec.AuthState, &rec.CreatedAt, &rec.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		accountID, err := d.encryptor.DecryptIfEnabled(rec.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt account id: %w", err)
		}
		rec.AccountID = accountID
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateAuthState records the latest observed authorization state and
// bumps the session's last-seen timestamp.
func (d *Database) UpdateAuthState(ctx context.Context, sessionKey, authState string) error {
	query := `UPDATE sessions SET auth_state = ?, last_seen_at = ? WHERE session_key = ?`
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, authState, time.Now().Unix(), sessionKey)
		return err
	}, "update auth state")
}

// DeleteSession removes a session record. Deleting an unknown key is a
// no-op.
func (d *Database) DeleteSession(ctx context.Context, sessionKey string) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, sessionKey)
		return err
	}, "delete session")
}
