package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/classpulse/poll-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryRepository stores the summary of finalized polls. Live session
// state never touches the database; this is the only persisted record.
type HistoryRepository struct {
	db *pgxpool.Pool
}

func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) SavePollSummary(ctx context.Context, s domain.PollSummary) error {
	counts, err := json.Marshal(s.Counts)
	if err != nil {
		return fmt.Errorf("encode counts: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO poll_history (poll_id, question, options, counts, participants, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.PollID, s.Question, s.Options, counts, s.Participants, s.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert poll_history: %w", err)
	}
	return nil
}

// ListSummaries returns the most recent finalized polls, newest first.
func (r *HistoryRepository) ListSummaries(ctx context.Context, limit int) ([]domain.PollSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.db.Query(ctx, `
		SELECT poll_id, question, options, counts, participants, completed_at
		FROM poll_history
		ORDER BY completed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PollSummary
	for rows.Next() {
		var s domain.PollSummary
		var counts []byte
		if err := rows.Scan(&s.PollID, &s.Question, &s.Options, &counts, &s.Participants, &s.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(counts, &s.Counts); err != nil {
			return nil, fmt.Errorf("decode counts: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
