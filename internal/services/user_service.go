package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"studypath/internal/config"
	"studypath/internal/models"
	"studypath/internal/observability"
	contextutils "studypath/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceInterface defines user account and streak operations
type UserServiceInterface interface {
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUserByID(ctx context.Context, userID int) (*models.User, error)
	TouchActivity(ctx context.Context, userID int, now time.Time) error
	EnsureAdminUser(ctx context.Context) error
}

// UserService manages accounts, password auth and daily activity streaks
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewUserServiceWithLogger creates a new user service
func NewUserServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *UserService {
	return &UserService{db: db, cfg: cfg, logger: logger}
}

// CreateUser registers a new account with a bcrypt-hashed password
func (s *UserService) CreateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "CreateUser",
		attribute.String("username", username),
	)
	defer observability.FinishSpan(span, &err)

	if !contextutils.IsValidUsername(username) {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "username must be 3-64 characters with no spaces")
	}
	if !contextutils.IsValidPassword(password) {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to hash password")
	}

	user := &models.User{Username: username, PasswordHash: string(hash)}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		username, string(hash),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, contextutils.WrapError(contextutils.ErrRecordExists, "username already taken")
		}
		return nil, contextutils.WrapError(err, "failed to insert user")
	}

	s.logger.Info(ctx, "User created", map[string]interface{}{"user_id": user.ID, "username": username})
	return user, nil
}

// AuthenticateUser verifies a username/password pair
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "AuthenticateUser",
		attribute.String("username", username),
	)
	defer observability.FinishSpan(span, &err)

	user, err := s.getUserByUsername(ctx, username)
	if err != nil {
		if contextutils.GetErrorCode(err) == contextutils.ErrorCodeRecordNotFound {
			return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, "invalid username or password")
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, "invalid username or password")
	}
	return user, nil
}

// GetUserByID loads a user by id
func (s *UserService) GetUserByID(ctx context.Context, userID int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "GetUserByID",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var user models.User
	err = s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, current_streak, longest_streak, last_activity_date, created_at, updated_at
		 FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CurrentStreak, &user.LongestStreak,
		&user.LastActivityDate, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query user")
	}
	return &user, nil
}

// TouchActivity advances the daily streak for activity at the given time.
// Activity on the same UTC day is a no-op, the next UTC day extends the
// streak, and any longer gap resets it to one.
func (s *UserService) TouchActivity(ctx context.Context, userID int, now time.Time) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "TouchActivity",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	current, longest, changed := advanceStreak(user.CurrentStreak, user.LongestStreak, user.LastActivityDate, now)
	if !changed {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users
		 SET current_streak = $1, longest_streak = $2, last_activity_date = $3, updated_at = NOW()
		 WHERE id = $4`,
		current, longest, contextutils.DateUTC(now), userID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to update streak")
	}

	span.SetAttributes(
		attribute.Int("streak.current", current),
		attribute.Int("streak.longest", longest),
	)
	return nil
}

// advanceStreak applies one activity event to the streak counters
func advanceStreak(current, longest int, last sql.NullTime, now time.Time) (newCurrent, newLongest int, changed bool) {
	switch {
	case last.Valid && contextutils.SameUTCDay(last.Time, now):
		return current, longest, false
	case last.Valid && contextutils.IsNextUTCDay(last.Time, now):
		newCurrent = current + 1
	default:
		newCurrent = 1
	}
	newLongest = longest
	if newCurrent > newLongest {
		newLongest = newCurrent
	}
	return newCurrent, newLongest, true
}

// EnsureAdminUser creates the configured admin account when it does not exist
func (s *UserService) EnsureAdminUser(ctx context.Context) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "EnsureAdminUser")
	defer observability.FinishSpan(span, &err)

	username := s.cfg.Server.AdminUsername
	password := s.cfg.Server.AdminPassword
	if username == "" || password == "" {
		return nil
	}

	_, err = s.getUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if contextutils.GetErrorCode(err) != contextutils.ErrorCodeRecordNotFound {
		return err
	}

	_, err = s.CreateUser(ctx, username, password)
	return err
}

func (s *UserService) getUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, current_streak, longest_streak, last_activity_date, created_at, updated_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CurrentStreak, &user.LongestStreak,
		&user.LastActivityDate, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query user")
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
