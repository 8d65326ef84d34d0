package store

import (
	"database/sql"
	"errors"
	"time"
)

// chatIDKey is the single token identifying the visitor's active chat
// session. Absence means no active session.
const chatIDKey = "chat_id"

// Get returns the value for key, or "" if the key is absent.
func (db *DB) Get(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM session_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value (last write wins).
func (db *DB) Set(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO session_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// Delete removes key. Deleting an absent key is not an error.
func (db *DB) Delete(key string) error {
	_, err := db.Exec(`DELETE FROM session_state WHERE key = ?`, key)
	return err
}

// ChatID returns the persisted active chat token, or "" when no chat has
// been started.
func (db *DB) ChatID() (string, error) {
	return db.Get(chatIDKey)
}

// SetChatID persists the active chat token after a successful chat initiation.
func (db *DB) SetChatID(chatID string) error {
	return db.Set(chatIDKey, chatID)
}

// ClearChatID removes the token when the chat is ended. This is terminal for
// that chat id; no further events are accepted for it.
func (db *DB) ClearChatID() error {
	return db.Delete(chatIDKey)
}
