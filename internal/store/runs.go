package store

import "fmt"

// RecordRun appends a command run.
func (db *DB) RecordRun(r *CommandRun) error {
	_, err := db.Exec(`
		INSERT INTO command_runs (id, command, chat_jid, sender_jid, args, status, error_message, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Command, r.ChatJID, r.SenderJID, r.Args, r.Status, r.ErrorMessage, r.DurationMs, r.StartedAt)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty command
// lists every command.
func (db *DB) ListRuns(command string, limit int) ([]CommandRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, command, chat_jid, sender_jid, args, status, error_message, duration_ms, started_at
		FROM command_runs
		WHERE ? = '' OR command = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, command, command, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []CommandRun
	for rows.Next() {
		var r CommandRun
		if err := rows.Scan(&r.ID, &r.Command, &r.ChatJID, &r.SenderJID, &r.Args, &r.Status, &r.ErrorMessage, &r.DurationMs, &r.StartedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunCounts returns the number of runs per status.
func (db *DB) RunCounts() (map[string]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM command_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
