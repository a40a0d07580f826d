package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soyeahso/concierge/internal/domain"
)

// sessionRow is the SQL shape of a session; context and history are JSON.
type sessionRow struct {
	UserID      string `db:"user_id"`
	Flow        string `db:"flow"`
	Context     string `db:"context"`
	History     string `db:"history"`
	LastUpdated string `db:"last_updated"`
}

// SQLSessionStore implements domain.SessionStore on a SQL database.
type SQLSessionStore struct {
	db *DB
}

// NewSQLSessionStore creates a session store using the given database.
func NewSQLSessionStore(db *DB) *SQLSessionStore {
	return &SQLSessionStore{db: db}
}

// Load returns the stored session for userID, or a fresh one when there is
// none or it cannot be read.
func (s *SQLSessionStore) Load(ctx context.Context, userID string) *domain.Session {
	var row sessionRow
	err := s.db.x.GetContext(ctx, &row,
		s.db.x.Rebind(`SELECT user_id, flow, context, history, last_updated FROM sessions WHERE user_id = ?`), userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.db.log.Warn().Err(err).Str("userId", userID).Msg("failed to load session")
		}
		return domain.NewSession(userID)
	}

	sess, err := decodeSessionRow(row)
	if err != nil {
		s.db.log.Warn().Err(err).Str("userId", userID).Msg("discarding unreadable session")
		return domain.NewSession(userID)
	}
	return sess
}

func decodeSessionRow(row sessionRow) (*domain.Session, error) {
	// Reassemble the JSON document so slot values decode the same way as
	// every other backend.
	doc, err := json.Marshal(map[string]any{
		"userId":      row.UserID,
		"flow":        row.Flow,
		"context":     json.RawMessage(row.Context),
		"history":     json.RawMessage(row.History),
		"lastUpdated": row.LastUpdated,
	})
	if err != nil {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal(doc, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Save overwrites the stored record for the session's user.
func (s *SQLSessionStore) Save(ctx context.Context, sess *domain.Session) error {
	ctxJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("encoding session context: %w", err)
	}
	history := sess.History
	if history == nil {
		history = []domain.Exchange{}
	}
	histJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encoding session history: %w", err)
	}

	_, err = s.db.x.NamedExecContext(ctx,
		`INSERT INTO sessions (user_id, flow, context, history, last_updated)
		 VALUES (:user_id, :flow, :context, :history, :last_updated)
		 ON CONFLICT (user_id) DO UPDATE SET
		   flow = excluded.flow,
		   context = excluded.context,
		   history = excluded.history,
		   last_updated = excluded.last_updated`,
		sessionRow{
			UserID:      sess.UserID,
			Flow:        string(sess.Flow),
			Context:     string(ctxJSON),
			History:     string(histJSON),
			LastUpdated: formatTime(sess.LastUpdated),
		})
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sess.UserID, err)
	}
	return nil
}

// List returns all user ids with a stored session, most recent first.
func (s *SQLSessionStore) List(ctx context.Context) []string {
	var ids []string
	if err := s.db.x.SelectContext(ctx, &ids, `SELECT user_id FROM sessions ORDER BY last_updated DESC`); err != nil {
		s.db.log.Warn().Err(err).Msg("failed to list sessions")
		return nil
	}
	return ids
}
