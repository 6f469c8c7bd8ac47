package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliniccompass/cliniccompass-backend/internal/database"
	"github.com/cliniccompass/cliniccompass-backend/internal/i18n"
	"github.com/cliniccompass/cliniccompass-backend/internal/models"
	"github.com/cliniccompass/cliniccompass-backend/pkg/utils"
)

// IdentityService signs users up, in and out, and resolves bearer tokens to
// the merged user view.
type IdentityService struct {
	credentials CredentialStore
	profiles    ProfileStore
	sessions    *SessionStore
	events      *SessionDispatcher
	logger      zerolog.Logger
	now         func() time.Time
}

func NewIdentityService(credentials CredentialStore, profiles ProfileStore, sessions *SessionStore, events *SessionDispatcher, logger zerolog.Logger) *IdentityService {
	return &IdentityService{
		credentials: credentials,
		profiles:    profiles,
		sessions:    sessions,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// Signup creates the credential and a profile with the default language,
// then opens a session.
func (s *IdentityService) Signup(ctx context.Context, email, password, displayName string) (*models.Session, error) {
	if err := utils.ValidateSignup(email, password, displayName); err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	cred := models.Credential{
		UserID:       uuid.NewString(),
		Email:        utils.NormalizeEmail(email),
		PasswordHash: hash,
		DisplayName:  displayName,
		CreatedAt:    now,
	}
	if err := s.credentials.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create credential: %w", err)
	}

	profile := models.Profile{
		ID:                cred.UserID,
		Email:             cred.Email,
		DisplayName:       displayName,
		PreferredLanguage: string(i18n.English),
		CreatedAt:         now,
	}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		// Without the profile the account is unusable; drop the credential
		// so the email can sign up again.
		if delErr := s.credentials.DeleteCredential(ctx, cred.UserID); delErr != nil {
			s.logger.Error().Err(delErr).Str("user_id", cred.UserID).Msg("failed to remove credential after profile error")
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info().Str("user_id", cred.UserID).Msg("user signed up")
	return s.open(ctx, &cred)
}

func (s *IdentityService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	if email == "" || password == "" {
		return nil, &utils.ValidationError{Field: "form", Key: "error.fill_all_fields"}
	}

	cred, err := s.credentials.CredentialByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	ok, err := utils.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", cred.UserID).Msg("stored password hash is unreadable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return s.open(ctx, cred)
}

func (s *IdentityService) open(ctx context.Context, cred *models.Credential) (*models.Session, error) {
	user, err := s.merged(ctx, cred)
	if err != nil {
		return nil, err
	}

	token, replaced, err := s.sessions.Create(ctx, cred.UserID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if replaced != "" {
		s.events.Publish(ctx, SessionEvent{UserID: cred.UserID, Token: replaced})
	}
	return &models.Session{Token: token, User: user}, nil
}

// Logout ends the session and tells its observers it signed out. Unknown
// tokens are ignored.
func (s *IdentityService) Logout(ctx context.Context, token string) error {
	userID, err := s.sessions.Invalidate(ctx, token)
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	if userID != "" {
		s.events.Publish(ctx, SessionEvent{UserID: userID, Token: token})
	}
	return nil
}

// CurrentUser resolves token. A nil user with a nil error means signed out.
func (s *IdentityService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	userID, ok, err := s.sessions.Validate(ctx, token)
	if err != nil || !ok {
		return nil, err
	}

	cred, err := s.credentials.CredentialByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return s.merged(ctx, cred)
}

// RefreshSession extends token's session by another full duration.
func (s *IdentityService) RefreshSession(ctx context.Context, token string) error {
	return s.sessions.Refresh(ctx, token)
}

// Observe delivers the current session value for token, then every later
// change to it, until the returned function is called.
func (s *IdentityService) Observe(ctx context.Context, token string, listener SessionListener) (func(), error) {
	user, err := s.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		listener(SessionEvent{Token: token})
		return func() {}, nil
	}

	unsubscribe := s.events.Subscribe(user.ID, func(e SessionEvent) {
		if e.User == nil && e.Token != "" && e.Token != token {
			return
		}
		listener(e)
	})
	listener(SessionEvent{UserID: user.ID, Token: token, User: user})
	return unsubscribe, nil
}

// SetLanguage stores the preferred language and pushes the updated user to
// the user's observers.
func (s *IdentityService) SetLanguage(ctx context.Context, userID string, lang i18n.Lang) error {
	if err := s.profiles.SetLanguage(ctx, userID, string(lang)); err != nil {
		return fmt.Errorf("set language: %w", err)
	}

	cred, err := s.credentials.CredentialByID(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("language saved but user reload failed")
		return nil
	}
	user, err := s.merged(ctx, cred)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("language saved but user reload failed")
		return nil
	}
	s.events.Publish(ctx, SessionEvent{UserID: userID, User: user})
	return nil
}

func (s *IdentityService) merged(ctx context.Context, cred *models.Credential) (*models.User, error) {
	doc, err := s.profiles.ProfileDocument(ctx, cred.UserID)
	if errors.Is(err, database.ErrNotFound) {
		doc = nil
	} else if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return MergeUser(cred, doc)
}

// MergeUser overlays the profile document on the credential fields. Only
// the known profile fields are accepted; anything else is an error.
func MergeUser(cred *models.Credential, doc map[string]any) (*models.User, error) {
	user := &models.User{
		ID:                cred.UserID,
		Email:             cred.Email,
		DisplayName:       cred.DisplayName,
		PreferredLanguage: string(i18n.English),
		CreatedAt:         cred.CreatedAt,
	}

	for key, value := range doc {
		switch key {
		case "email":
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("profile field %q: want string, got %T", key, value)
			}
			user.Email = s
		case "displayName":
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("profile field %q: want string, got %T", key, value)
			}
			user.DisplayName = s
		case "preferredLanguage":
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("profile field %q: want string, got %T", key, value)
			}
			user.PreferredLanguage = string(i18n.Normalize(s))
		case "createdAt":
			t, ok := value.(time.Time)
			if !ok {
				return nil, fmt.Errorf("profile field %q: want time, got %T", key, value)
			}
			user.CreatedAt = t
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProfileField, key)
		}
	}
	return user, nil
}
