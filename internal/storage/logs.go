package storage

import (
	"fmt"
	"time"
)

// LogEntry represents a single log line for a proposal.
type LogEntry struct {
	ID         int64     `json:"id"`
	ProposalID string    `json:"proposal_id"`
	Timestamp  time.Time `json:"timestamp"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
}

// AppendLog adds a log entry for a proposal.
func (d *DB) AppendLog(proposalID string, at time.Time, level, message string) error {
	_, err := d.db.Exec(
		`INSERT INTO proposal_logs (proposal_id, timestamp, level, message) VALUES (?, ?, ?, ?)`,
		proposalID, at.UTC(), level, message,
	)
	if err != nil {
		return fmt.Errorf("append log %s: %w", proposalID, err)
	}
	return nil
}

// GetLogs returns all log entries for a proposal, ordered by id.
func (d *DB) GetLogs(proposalID string) ([]LogEntry, error) {
	return d.GetLogsSince(proposalID, 0)
}

// GetLogsSince returns log entries after a given id (for polling).
func (d *DB) GetLogsSince(proposalID string, afterID int64) ([]LogEntry, error) {
	rows, err := d.db.Query(
		`SELECT id, proposal_id, timestamp, level, message FROM proposal_logs WHERE proposal_id = ? AND id > ? ORDER BY id`,
		proposalID, afterID,
	)
	if err != nil {
		return nil, fmt.Errorf("get logs %s: %w", proposalID, err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.ProposalID, &l.Timestamp, &l.Level, &l.Message); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
