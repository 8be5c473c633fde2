package store

import (
	"fmt"
	"time"
)

// InsertOutbound journals a text about to be sent.
func (db *DB) InsertOutbound(clientMsgID, chatJID, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbound (client_msg_id, chat_jid, body, status, created_at, updated_at)
		VALUES (?, ?, ?, 'sending', ?, ?)`,
		clientMsgID, chatJID, body, now, now)
	if err != nil {
		return fmt.Errorf("insert outbound: %w", err)
	}
	return nil
}

// MarkOutboundSent records the server message ID of a delivered text.
func (db *DB) MarkOutboundSent(clientMsgID, serverMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbound SET status = 'sent', server_msg_id = ?, updated_at = ? WHERE client_msg_id = ?`, serverMsgID, now, clientMsgID)
	return err
}

// MarkOutboundFailed records why a text could not be sent.
func (db *DB) MarkOutboundFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbound SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// ListOutbound returns the most recent sends, newest first.
func (db *DB) ListOutbound(limit int) ([]OutboundEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, client_msg_id, chat_jid, body, status, error_message, server_msg_id, created_at
		FROM outbound ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outbound: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboundEntry
	for rows.Next() {
		var e OutboundEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ChatJID, &e.Body, &e.Status, &e.ErrorMessage, &e.ServerMsgID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
