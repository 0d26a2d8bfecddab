package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/iserve-be/internal/auth"
	"github.com/isdelr/iserve-be/internal/metrics"
	"github.com/isdelr/iserve-be/internal/models"
	"github.com/isdelr/iserve-be/internal/repository"
	"github.com/rs/zerolog/log"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, in RegisterInput) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (string, models.User, error)
	ChangePassword(ctx context.Context, actorID, email, newPassword string) error
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	UpdateProfile(ctx context.Context, actorID, email string, update models.ProfileUpdate) (models.User, error)
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	Profession string
	Contact    string
}

// PasswordHasher turns plaintext passwords into storable hashes and back.
type PasswordHasher interface {
	HashPassword(plaintext string) (string, error)
	VerifyPassword(plaintext, storedHash string) (bool, error)
	Equalize(plaintext string)
}

// TokenIssuer issues bearer tokens for verified accounts.
type TokenIssuer interface {
	IssueToken(userID string) (string, error)
}

// UserService provides business logic for user management.
type UserService struct {
	users       repository.UserRepository
	hasher      PasswordHasher
	tokens      TokenIssuer
	events      EventServiceProvider
	metrics     metrics.Recorder
	countryCode string
	now         func() time.Time
}

// UserServiceOptions carries the collaborators of a UserService.
type UserServiceOptions struct {
	Users       repository.UserRepository
	Hasher      PasswordHasher
	Tokens      TokenIssuer
	Events      EventServiceProvider // optional
	Metrics     metrics.Recorder     // optional
	CountryCode string
}

// NewUserService creates a new UserService.
func NewUserService(opts UserServiceOptions) *UserService {
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &UserService{
		users:       opts.Users,
		hasher:      opts.Hasher,
		tokens:      opts.Tokens,
		events:      opts.Events,
		metrics:     rec,
		countryCode: opts.CountryCode,
		now:         time.Now,
	}
}

// Register creates a new account, hashing its password. The email is the
// unique key; a second registration for it fails with ErrDuplicateEmail.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return models.User{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return models.User{}, err
	}

	// Friendly early exit; the UNIQUE constraint below is what actually
	// guarantees one account per email under concurrent registrations.
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		s.metrics.RecordRegistration(metrics.OutcomeDuplicate)
		return models.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return models.User{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return models.User{}, err
	}

	now := s.now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(in.Username),
		Email:        email,
		PasswordHash: hash,
		Profession:   strings.TrimSpace(in.Profession),
		Contact:      NormalizeContact(in.Contact, s.countryCode),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.RecordRegistration(metrics.OutcomeDuplicate)
			return models.User{}, ErrDuplicateEmail
		}
		s.metrics.RecordRegistration(metrics.OutcomeError)
		return models.User{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.metrics.RecordRegistration(metrics.OutcomeSuccess)
	s.record(ctx, EventUserRegister, "info", fmt.Sprintf("Account %s registered.", user.Email), &user.ID)

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// Authenticate verifies an email/password pair and issues a token for the
// account. An unknown email and a wrong password both yield
// ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (string, models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Equalize(password)
			s.loginFailed(ctx, email, nil)
			return "", models.User{}, ErrInvalidCredentials
		}
		s.metrics.RecordLogin(metrics.OutcomeError)
		return "", models.User{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	ok, err := s.verify(password, user.PasswordHash)
	if err != nil {
		s.metrics.RecordLogin(metrics.OutcomeError)
		return "", models.User{}, err
	}
	if !ok {
		s.loginFailed(ctx, email, &user.ID)
		return "", models.User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		s.metrics.RecordLogin(metrics.OutcomeError)
		return "", models.User{}, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.RecordLogin(metrics.OutcomeSuccess)
	s.record(ctx, EventUserLogin, "info", fmt.Sprintf("Account %s signed in.", user.Email), &user.ID)

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return token, user, nil
}

func (s *UserService) loginFailed(ctx context.Context, email string, userID *string) {
	s.metrics.RecordLogin(metrics.OutcomeInvalid)
	s.record(ctx, EventUserLoginFail, "warn", fmt.Sprintf("Failed sign-in for %s.", email), userID)
}

// ChangePassword replaces the password of the account with the given email.
// Only the account itself (actorID) may do so.
func (s *UserService) ChangePassword(ctx context.Context, actorID, email, newPassword string) error {
	user, err := s.lookup(ctx, email)
	if err != nil {
		s.metrics.RecordPasswordChange(outcomeFor(err))
		return err
	}
	if user.ID != actorID {
		s.metrics.RecordPasswordChange(metrics.OutcomeInvalid)
		return ErrForbidden
	}
	if err := validatePassword(newPassword); err != nil {
		s.metrics.RecordPasswordChange(metrics.OutcomeInvalid)
		return err
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		s.metrics.RecordPasswordChange(metrics.OutcomeError)
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordPasswordChange(metrics.OutcomeNotFound)
			return ErrAccountNotFound
		}
		s.metrics.RecordPasswordChange(metrics.OutcomeError)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.metrics.RecordPasswordChange(metrics.OutcomeSuccess)
	s.record(ctx, EventUserPasswordChange, "info", fmt.Sprintf("Password changed for %s.", user.Email), &user.ID)
	return nil
}

// ListUsers returns every account without password hashes.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// GetUserByEmail retrieves a single account by email without its password hash.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// GetUserByID retrieves a single account by id without its password hash.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.User{}, ErrAccountNotFound
		}
		return models.User{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateProfile changes the non-security profile fields of an account.
func (s *UserService) UpdateProfile(ctx context.Context, actorID, email string, update models.ProfileUpdate) (models.User, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return models.User{}, err
	}
	if user.ID != actorID {
		return models.User{}, ErrForbidden
	}
	if update.IsEmpty() {
		return models.User{}, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	if update.Username != nil {
		v := strings.TrimSpace(*update.Username)
		update.Username = &v
	}
	if update.Profession != nil {
		v := strings.TrimSpace(*update.Profession)
		update.Profession = &v
	}
	if update.Contact != nil {
		v := NormalizeContact(*update.Contact, s.countryCode)
		update.Contact = &v
	}

	updated, err := s.users.UpdateFields(ctx, user.Email, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.User{}, ErrAccountNotFound
		}
		return models.User{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.record(ctx, EventUserUpdate, "info", fmt.Sprintf("Profile updated for %s.", updated.Email), &updated.ID)
	updated.PasswordHash = ""
	return updated, nil
}

// lookup finds an account by email, mapping a miss to ErrAccountNotFound.
// The returned user still carries its hash.
func (s *UserService) lookup(ctx context.Context, email string) (models.User, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.User{}, ErrAccountNotFound
		}
		return models.User{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return user, nil
}

func (s *UserService) hash(plaintext string) (string, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveHashDuration(time.Since(start)) }()
	return s.hasher.HashPassword(plaintext)
}

func (s *UserService) verify(plaintext, storedHash string) (bool, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveHashDuration(time.Since(start)) }()
	return s.hasher.VerifyPassword(plaintext, storedHash)
}

// record writes an activity event. Failures are logged, never returned:
// the account operation itself has already succeeded.
func (s *UserService) record(ctx context.Context, eventType, level, message string, userID *string) {
	if s.events == nil {
		return
	}
	if err := s.events.CreateEvent(ctx, eventType, level, message, userID); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record account event")
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrForbidden):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email %q is not a valid address", ErrInvalidInput, raw)
	}
	return email, nil
}

func validatePassword(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	case len(p) > auth.MaxPasswordBytes:
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, auth.MaxPasswordBytes)
	}
	return nil
}

// NormalizeContact canonicalises a phone number. Numbers already in
// international form (leading "+") are kept; national numbers get
// countryCode prefixed with one leading trunk "0" removed.
func NormalizeContact(raw, countryCode string) string {
	contact := strings.Join(strings.Fields(raw), "")
	if contact == "" || countryCode == "" || strings.HasPrefix(contact, "+") {
		return contact
	}
	return countryCode + strings.TrimPrefix(contact, "0")
}
