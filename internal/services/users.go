package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Username      string
	Email         string
	Password      string
	FullName      *string
	ProfilePicURL *string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string
	User        models.User
	IPOutcome   models.RegisterOutcome
}

// UserService manages accounts and credentials.
type UserService struct {
	store    repositories.Store
	hasher   auth.PasswordHasher
	tokens   auth.TokenService
	guard    *AccessGuard
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(store repositories.Store, hasher auth.PasswordHasher, tokens auth.TokenService, guard *AccessGuard, tokenTTL time.Duration, logger *zap.Logger) *UserService {
	return &UserService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		guard:    guard,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// Register creates an active account.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	if _, err := s.store.Users().GetByUsername(ctx, input.Username); err == nil {
		return models.User{}, badRequest(msgUsernameTaken)
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, err
	}
	if _, err := s.store.Users().GetByEmail(ctx, input.Email); err == nil {
		return models.User{}, badRequest(msgEmailTaken)
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, err
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.store.Users().Create(ctx, models.User{
		Username:       input.Username,
		Email:          input.Email,
		HashedPassword: digest,
		FullName:       input.FullName,
		ProfilePicURL:  input.ProfilePicURL,
	})
	if errors.Is(err, repositories.ErrUserConflict) {
		return models.User{}, badRequest(msgAccountConflicts)
	}
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("user registered", zap.Int("user_id", user.ID))
	return user, nil
}

// Login verifies credentials, adds clientIP to the user's allow-list and issues
// a bearer token. Unknown users, wrong passwords and inactive accounts all fail
// with the same reason.
func (s *UserService) Login(ctx context.Context, username, password, clientIP string) (LoginResult, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
		return LoginResult{}, err
	}
	if err != nil || !s.hasher.Verify(password, user.HashedPassword) || !user.IsActive {
		return LoginResult{}, invalidCredentials(msgBadCredentials)
	}

	result := LoginResult{User: user}
	if _, ok := NormalizeAddress(clientIP); ok {
		description := LoginIPDescription
		_, outcome, err := s.guard.RegisterAuthorizedIP(ctx, user.ID, clientIP, &description)
		if err != nil {
			return LoginResult{}, err
		}
		result.IPOutcome = outcome
	} else {
		s.logger.Warn("login without a parseable client ip", zap.Int("user_id", user.ID), zap.String("ip", clientIP))
	}

	token, err := s.tokens.Issue(auth.SubjectForUser(user.ID), s.tokenTTL)
	if err != nil {
		return LoginResult{}, err
	}
	result.AccessToken = token
	return result, nil
}

// UserIDFromToken resolves a bearer token to the id it was issued for.
func (s *UserService) UserIDFromToken(token string) (int, error) {
	subject, err := s.tokens.Resolve(token)
	if err != nil {
		return 0, invalidCredentials(msgInvalidToken)
	}
	userID, err := auth.UserIDFromSubject(subject)
	if err != nil {
		return 0, invalidCredentials(msgInvalidToken)
	}
	return userID, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *UserService) Authenticate(ctx context.Context, token string) (models.User, error) {
	userID, err := s.UserIDFromToken(token)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, invalidCredentials(msgInvalidToken)
	}
	if err != nil {
		return models.User{}, err
	}
	if !user.IsActive {
		return models.User{}, badRequest(msgInactiveUser)
	}
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, userID int) (models.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, notFound(msgUserNotFound)
	}
	return user, err
}

// List pages through users.
func (s *UserService) List(ctx context.Context, skip, limit int) ([]models.User, error) {
	return s.store.Users().List(ctx, skip, limit)
}

// UpdateSelf applies the non-nil fields of update to the user's own account.
func (s *UserService) UpdateSelf(ctx context.Context, userID int, update models.UserUpdate) (models.User, error) {
	var updated models.User
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return notFound(msgUserNotFound)
		}
		if err != nil {
			return err
		}

		if update.Username != nil {
			if err := ensureFree(ctx, tx.Users().GetByUsername, *update.Username, userID, msgUsernameTaken); err != nil {
				return err
			}
			user.Username = *update.Username
		}
		if update.Email != nil {
			if err := ensureFree(ctx, tx.Users().GetByEmail, *update.Email, userID, msgEmailTaken); err != nil {
				return err
			}
			user.Email = *update.Email
		}
		if update.FullName != nil {
			user.FullName = update.FullName
		}
		if update.ProfilePicURL != nil {
			user.ProfilePicURL = update.ProfilePicURL
		}
		if update.Password != nil {
			digest, err := s.hasher.Hash(*update.Password)
			if err != nil {
				return err
			}
			user.HashedPassword = digest
		}

		updated, err = tx.Users().Update(ctx, user)
		if errors.Is(err, repositories.ErrUserConflict) {
			return badRequest(msgAccountConflicts)
		}
		return err
	})
	return updated, err
}

// Deactivate marks the account inactive. Accounts are never deleted.
func (s *UserService) Deactivate(ctx context.Context, userID int) (models.User, error) {
	var updated models.User
	err := s.store.WithinTx(ctx, func(tx repositories.Repositories) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return notFound(msgUserNotFound)
		}
		if err != nil {
			return err
		}
		user.IsActive = false
		updated, err = tx.Users().Update(ctx, user)
		return err
	})
	if err == nil {
		s.logger.Info("user deactivated", zap.Int("user_id", userID))
	}
	return updated, err
}

func ensureFree(ctx context.Context, lookup func(context.Context, string) (models.User, error), value string, userID int, detail string) error {
	existing, err := lookup(ctx, value)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != userID {
		return badRequest(detail)
	}
	return nil
}
