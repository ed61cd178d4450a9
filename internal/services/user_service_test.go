package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"studypath/internal/config"
	"studypath/internal/observability"
	contextutils "studypath/internal/utils"

	"github.com/stretchr/testify/assert"
)

func newTestUserService() *UserService {
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewUserServiceWithLogger(nil, &config.Config{}, logger)
}

func TestAdvanceStreak(t *testing.T) {
	day := func(d int) sql.NullTime {
		return sql.NullTime{Time: time.Date(2025, 6, d, 8, 0, 0, 0, time.UTC), Valid: true}
	}
	now := time.Date(2025, 6, 10, 20, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		current     int
		longest     int
		last        sql.NullTime
		wantCurrent int
		wantLongest int
		wantChanged bool
	}{
		{"first ever activity", 0, 0, sql.NullTime{}, 1, 1, true},
		{"same day is a no-op", 5, 8, day(10), 5, 8, false},
		{"next day extends", 5, 8, day(9), 6, 8, true},
		{"next day sets new longest", 8, 8, day(9), 9, 9, true},
		{"gap resets to one", 5, 8, day(7), 1, 8, true},
		{"long gap resets", 30, 30, day(1), 1, 30, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, longest, changed := advanceStreak(tt.current, tt.longest, tt.last, now)
			assert.Equal(t, tt.wantCurrent, current)
			assert.Equal(t, tt.wantLongest, longest)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestAdvanceStreak_TimezoneBoundary(t *testing.T) {
	// 23:30 UTC yesterday followed by 00:30 UTC today counts as consecutive days
	last := sql.NullTime{Time: time.Date(2025, 6, 9, 23, 30, 0, 0, time.UTC), Valid: true}
	now := time.Date(2025, 6, 10, 0, 30, 0, 0, time.UTC)

	current, longest, changed := advanceStreak(3, 3, last, now)
	assert.True(t, changed)
	assert.Equal(t, 4, current)
	assert.Equal(t, 4, longest)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New(`duplicate key value violates unique constraint "users_username_key"`)))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}

func TestCreateUser_RejectsInvalidInput(t *testing.T) {
	svc := newTestUserService()

	_, err := svc.CreateUser(context.Background(), "ab", "longenough")
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))

	_, err = svc.CreateUser(context.Background(), "alice", "short")
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))
}
