package streak

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/models"
)

// mockStore implements Store in memory.
type mockStore struct {
	sessions  []*models.Session
	threshold int
	streak    *models.Streak
	saves     int
	listErr   error
}

func (m *mockStore) ListSessions(_ context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.Session
	for _, s := range m.sessions {
		if filter.UserID == "" || s.UserID == filter.UserID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) GetStreakThreshold(_ context.Context, _ string) (int, error) {
	if m.threshold == 0 {
		return DefaultThresholdMinutes, nil
	}
	return m.threshold, nil
}

func (m *mockStore) GetStreak(_ context.Context, userID string) (*models.Streak, error) {
	if m.streak == nil {
		return &models.Streak{UserID: userID}, nil
	}
	cp := *m.streak
	return &cp, nil
}

func (m *mockStore) SaveStreak(_ context.Context, s *models.Streak) error {
	m.saves++
	cp := *s
	m.streak = &cp
	return nil
}

func userSession(user string, dayOffset, minutes int) *models.Session {
	s := sessionOn(dayOffset, 9, minutes)
	s.UserID = user
	return s
}

func TestService_RefreshSavesCache(t *testing.T) {
	st := &mockStore{sessions: []*models.Session{
		userSession("alice", -1, 30),
		userSession("alice", 0, 30),
		userSession("bob", 0, 30),
	}}
	svc := NewService(st, clock.NewManual(testNow))

	res, err := svc.Refresh(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak)
	assert.True(t, res.QualifiedToday)
	assert.Equal(t, 1, st.saves)
	assert.Equal(t, "2026-10-18", st.streak.LastQualifiedDate)

	// A second refresh the same day changes nothing and skips the write.
	_, err = svc.Refresh(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, st.saves)
}

func TestService_RefreshUsesThreshold(t *testing.T) {
	st := &mockStore{
		sessions:  []*models.Session{userSession("alice", 0, 20)},
		threshold: 30,
	}
	svc := NewService(st, clock.NewManual(testNow))

	res, err := svc.Refresh(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, res.CurrentStreak)
	assert.False(t, res.QualifiedToday)

	ok, err := svc.QualifiedToday(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_RefreshListError(t *testing.T) {
	st := &mockStore{listErr: errors.New("offline")}
	svc := NewService(st, clock.NewManual(testNow))

	_, err := svc.Refresh(context.Background(), "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list sessions")
}
