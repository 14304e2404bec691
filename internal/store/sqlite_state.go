package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/joescharf/focus/internal/models"
)

// --- Settings ---

// GetSettings returns the user's settings, or the defaults when none are stored.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	st := &models.Settings{}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, streak_threshold_minutes, auto_start_breaks, sound_enabled, work_minutes, break_minutes, updated_at
		FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&st.UserID, &st.StreakThresholdMinutes, &st.AutoStartBreaks, &st.SoundEnabled, &st.WorkMinutes, &st.BreakMinutes, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, st *models.Settings) error {
	st.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, streak_threshold_minutes, auto_start_breaks, sound_enabled, work_minutes, break_minutes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			streak_threshold_minutes = excluded.streak_threshold_minutes,
			auto_start_breaks = excluded.auto_start_breaks,
			sound_enabled = excluded.sound_enabled,
			work_minutes = excluded.work_minutes,
			break_minutes = excluded.break_minutes,
			updated_at = excluded.updated_at`,
		st.UserID, st.StreakThresholdMinutes, boolToInt(st.AutoStartBreaks), boolToInt(st.SoundEnabled),
		st.WorkMinutes, st.BreakMinutes, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// GetStreakThreshold returns the user's threshold in minutes, 15 when unset.
func (s *SQLiteStore) GetStreakThreshold(ctx context.Context, userID string) (int, error) {
	st, err := s.GetSettings(ctx, userID)
	if err != nil {
		return 0, err
	}
	if st.StreakThresholdMinutes <= 0 {
		return models.DefaultStreakThresholdMinutes, nil
	}
	return st.StreakThresholdMinutes, nil
}

// --- Streaks ---

// GetStreak returns the cached streak, or a zero streak when none is stored.
func (s *SQLiteStore) GetStreak(ctx context.Context, userID string) (*models.Streak, error) {
	st := &models.Streak{}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, current_streak, longest_streak, last_qualified_date, updated_at FROM streaks WHERE user_id = ?`, userID,
	).Scan(&st.UserID, &st.CurrentStreak, &st.LongestStreak, &st.LastQualifiedDate, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Streak{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) SaveStreak(ctx context.Context, st *models.Streak) error {
	st.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO streaks (user_id, current_streak, longest_streak, last_qualified_date, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_qualified_date = excluded.last_qualified_date,
			updated_at = excluded.updated_at`,
		st.UserID, st.CurrentStreak, st.LongestStreak, st.LastQualifiedDate, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save streak: %w", err)
	}
	return nil
}

// --- Timer state ---

func (s *SQLiteStore) GetTimerState(ctx context.Context, userID string) (*models.TimerState, error) {
	st := &models.TimerState{}
	var mode string
	var category sql.NullString
	var anchor, started sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, phase, mode, category_id, target_seconds, anchor_ms, accumulated_ms, session_id, started_ms, notified, updated_at
		FROM timer_state WHERE user_id = ?`, userID,
	).Scan(&st.UserID, &st.Phase, &mode, &category, &st.TargetSeconds, &anchor, &st.AccumulatedMs, &st.SessionID, &started, &st.Notified, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("timer state %w: %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get timer state: %w", err)
	}
	st.Mode = models.Mode(mode)
	st.CategoryID = strFromNull(category)
	st.Anchor = timeFromMs(anchor)
	st.Started = timeFromMs(started)
	return st, nil
}

func (s *SQLiteStore) SaveTimerState(ctx context.Context, st *models.TimerState) error {
	st.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timer_state (user_id, phase, mode, category_id, target_seconds, anchor_ms, accumulated_ms, session_id, started_ms, notified, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			phase = excluded.phase,
			mode = excluded.mode,
			category_id = excluded.category_id,
			target_seconds = excluded.target_seconds,
			anchor_ms = excluded.anchor_ms,
			accumulated_ms = excluded.accumulated_ms,
			session_id = excluded.session_id,
			started_ms = excluded.started_ms,
			notified = excluded.notified,
			updated_at = excluded.updated_at`,
		st.UserID, st.Phase, string(st.Mode), strOrNil(st.CategoryID), st.TargetSeconds,
		msOrNil(st.Anchor), st.AccumulatedMs, st.SessionID, msOrNil(st.Started), boolToInt(st.Notified), st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save timer state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTimerState(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM timer_state WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete timer state: %w", err)
	}
	return nil
}

// --- Pending writes ---

const pendingColumns = `id, op, session_id, ended_ms, duration, category_id, attempts, next_attempt_ms, last_error, created_at`

// Enqueue stores a failed session write for the outbox worker.
func (s *SQLiteStore) Enqueue(ctx context.Context, w *models.PendingWrite) error {
	if w.ID == "" {
		w.ID = newULID()
	}
	w.CreatedAt = time.Now().UTC()
	if w.NextAttemptAt.IsZero() {
		w.NextAttemptAt = w.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_writes (`+pendingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, string(w.Op), w.SessionID, msOrNil(w.EndedAt), w.Duration, strOrNil(w.CategoryID),
		w.Attempts, w.NextAttemptAt.UnixMilli(), w.LastError, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue pending write: %w", err)
	}
	return nil
}

func scanPending(row rowScanner) (*models.PendingWrite, error) {
	w := &models.PendingWrite{}
	var op string
	var endedMs sql.NullInt64
	var category sql.NullString
	var nextMs int64
	if err := row.Scan(&w.ID, &op, &w.SessionID, &endedMs, &w.Duration, &category, &w.Attempts, &nextMs, &w.LastError, &w.CreatedAt); err != nil {
		return nil, err
	}
	w.Op = models.PendingOp(op)
	w.EndedAt = timeFromMs(endedMs)
	w.CategoryID = strFromNull(category)
	w.NextAttemptAt = time.UnixMilli(nextMs)
	return w, nil
}

// LeasePendingWrites returns up to limit due writes and pushes their next
// attempt out by lease so a concurrent worker skips them.
func (s *SQLiteStore) LeasePendingWrites(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.PendingWrite, error) {
	if limit <= 0 {
		limit = 100
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("lease pending writes: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_writes
		WHERE status = 'pending' AND next_attempt_ms <= ?
		ORDER BY created_at, id LIMIT ?`, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("lease pending writes: %w", err)
	}
	var writes []*models.PendingWrite
	for rows.Next() {
		w, err := scanPending(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan pending write: %w", err)
		}
		writes = append(writes, w)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("lease pending writes: %w", err)
	}
	_ = rows.Close()

	leaseUntil := now.Add(lease).UnixMilli()
	for _, w := range writes {
		if _, err := tx.ExecContext(ctx,
			`UPDATE pending_writes SET next_attempt_ms = ? WHERE id = ?`, leaseUntil, w.ID); err != nil {
			return nil, fmt.Errorf("lease pending write %s: %w", w.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("lease pending writes: %w", err)
	}
	return writes, nil
}

func (s *SQLiteStore) MarkPendingDone(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE pending_writes SET status = 'done', last_error = '' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark pending done: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("pending write %w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) MarkPendingFailed(ctx context.Context, id string, nextAttempt time.Time, cause string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE pending_writes SET attempts = attempts + 1, next_attempt_ms = ?, last_error = ? WHERE id = ?`,
		nextAttempt.UnixMilli(), cause, id)
	if err != nil {
		return fmt.Errorf("mark pending failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("pending write %w: %s", ErrNotFound, id)
	}
	return nil
}

// ListPendingWrites returns the writes still waiting to be applied, oldest first.
func (s *SQLiteStore) ListPendingWrites(ctx context.Context) ([]*models.PendingWrite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_writes WHERE status = 'pending' ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list pending writes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var writes []*models.PendingWrite
	for rows.Next() {
		w, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending write: %w", err)
		}
		writes = append(writes, w)
	}
	return writes, rows.Err()
}
