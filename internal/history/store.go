package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blablabla-ai/blablabla/internal/models"
)

// ErrNotFound is returned when a lookup matches no row, including rows the
// caller is not allowed to see.
var ErrNotFound = errors.New("not found")

// Store is the Postgres-backed recording history. All per-recording queries
// are scoped by user ID so one user can never read another's history.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, rec *models.Recording) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO recordings (id, user_id, transcription, confidence, intent, result, audio_path, mime_type, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, rec.ID, rec.UserID, rec.Transcription, rec.Confidence, rec.Intent, rec.Result,
		rec.AudioPath, rec.MimeType, rec.DurationMs).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Recording, error) {
	rec := &models.Recording{}
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, transcription, confidence, intent, result, audio_path, mime_type, duration_ms, created_at, updated_at
		FROM recordings WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&rec.ID, &rec.UserID, &rec.Transcription, &rec.Confidence, &rec.Intent,
		&rec.Result, &rec.AudioPath, &rec.MimeType, &rec.DurationMs, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Recording, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, transcription, confidence, intent, result, audio_path, mime_type, duration_ms, created_at, updated_at
		FROM recordings WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var recs []models.Recording
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Transcription, &rec.Confidence, &rec.Intent,
			&rec.Result, &rec.AudioPath, &rec.MimeType, &rec.DurationMs, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM recordings WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSince counts a user's recordings created at or after the cutoff. The
// quota check reads this against a rolling window.
func (s *Store) CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM recordings WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recordings: %w", err)
	}
	return n, nil
}

// OldestSince returns the creation time of the user's oldest recording in
// the window, used to compute when the quota frees up. ErrNotFound when the
// window is empty.
func (s *Store) OldestSince(ctx context.Context, userID uuid.UUID, since time.Time) (time.Time, error) {
	var t *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT MIN(created_at) FROM recordings WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&t)
	if err != nil {
		return time.Time{}, fmt.Errorf("oldest recording: %w", err)
	}
	if t == nil {
		return time.Time{}, ErrNotFound
	}
	return *t, nil
}

// ClearAudioPath detaches the stored audio object from a recording after the
// purge worker removes it.
func (s *Store) ClearAudioPath(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE recordings SET audio_path = '', mime_type = '', updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear audio path: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := s.db.QueryRow(ctx, `
		SELECT id, email, COALESCE(full_name, ''), created_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
