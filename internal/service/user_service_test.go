package service

import (
	"context"
	"testing"

	"cakeshop/internal/domain"
	"cakeshop/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Username]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Username] = user
	return nil
}

func (m *mockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, exists := m.users[username]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockProfileRepository struct {
	profiles map[uuid.UUID]*domain.Profile
}

func newMockProfileRepository() *mockProfileRepository {
	return &mockProfileRepository{
		profiles: make(map[uuid.UUID]*domain.Profile),
	}
}

func (m *mockProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	m.profiles[profile.UserID] = profile
	return nil
}

func (m *mockProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	profile, exists := m.profiles[userID]
	if !exists {
		return nil, repository.ErrProfileNotFound
	}
	return profile, nil
}

func (m *mockProfileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	existing, exists := m.profiles[profile.UserID]
	if !exists {
		return repository.ErrProfileNotFound
	}
	existing.Address = profile.Address
	existing.Phone = profile.Phone
	return nil
}

func newTestUserService(userRepo *mockUserRepository, profileRepo *mockProfileRepository) UserService {
	return NewUserService(userRepo, profileRepo, "test-secret-key", 60)
}

func TestProperty_RegistrationCreatesHashedPasswords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(username string, password string, email string) bool {
			// Setup
			userRepo := newMockUserRepository()
			profileRepo := newMockProfileRepository()
			service := newTestUserService(userRepo, profileRepo)
			ctx := context.Background()

			// Execute registration
			user, err := service.Register(ctx, username, password, email, "1 Main St", "555-0100")
			if err != nil {
				// If registration fails, skip this test case
				return true
			}

			// Verify password is hashed (not equal to plaintext)
			if user.PasswordHash == password {
				t.Logf("FAIL: Password stored as plaintext for user %s", username)
				return false
			}

			// Verify password hash is a valid bcrypt hash
			err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
			if err != nil {
				t.Logf("FAIL: Password hash is not a valid bcrypt hash or doesn't match: %v", err)
				return false
			}

			// Verify the stored user has the hashed password
			storedUser, err := userRepo.FindByUsername(ctx, username)
			if err != nil {
				t.Logf("FAIL: Could not find stored user: %v", err)
				return false
			}

			if storedUser.PasswordHash != user.PasswordHash {
				t.Logf("FAIL: Stored password hash doesn't match returned password hash")
				return false
			}

			return true
		},
		// Generate usernames
		gen.RegexMatch(`[a-z][a-z0-9]{3,15}`),
		// Generate passwords with at least 8 characters
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		// Generate valid email addresses
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_JWTTokensContainRequiredClaims(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("access tokens contain user ID and role claims", prop.ForAll(
		func(username string, password string, email string, role string) bool {
			// Setup
			userRepo := newMockUserRepository()
			profileRepo := newMockProfileRepository()
			service := newTestUserService(userRepo, profileRepo)
			ctx := context.Background()

			// Register user
			user, err := service.Register(ctx, username, password, email, "", "")
			if err != nil {
				return true // Skip if registration fails
			}

			// Override role for testing
			user.Role = role
			userRepo.users[username] = user

			// Login to get a token
			accessToken, _, err := service.Login(ctx, username, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			// Validate and decode the access token
			claims, err := service.ValidateToken(accessToken)
			if err != nil {
				t.Logf("FAIL: Token validation failed: %v", err)
				return false
			}

			// Verify user ID claim is present and matches
			if claims.UserID != user.ID {
				t.Logf("FAIL: User ID claim mismatch. Expected %s, got %s", user.ID, claims.UserID)
				return false
			}

			// Verify role claim is present and matches
			if claims.Role != role {
				t.Logf("FAIL: Role claim mismatch. Expected %s, got %s", role, claims.Role)
				return false
			}

			// Verify token has expiration
			if claims.ExpiresAt == nil {
				t.Logf("FAIL: Token missing expiration claim")
				return false
			}

			// Verify token has issued at
			if claims.IssuedAt == nil {
				t.Logf("FAIL: Token missing issued at claim")
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z][a-z0-9]{3,15}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.OneConstOf("user", "admin"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRegisterCreatesProfile(t *testing.T) {
	userRepo := newMockUserRepository()
	profileRepo := newMockProfileRepository()
	service := newTestUserService(userRepo, profileRepo)
	ctx := context.Background()

	user, err := service.Register(ctx, "bob", "s3cretpass", "bob@example.com", "2 High St", "555-0101")
	require.NoError(t, err)
	assert.Equal(t, "user", user.Role)

	profile, err := service.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "2 High St", profile.Address)
	assert.Equal(t, "555-0101", profile.Phone)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	userRepo := newMockUserRepository()
	profileRepo := newMockProfileRepository()
	service := newTestUserService(userRepo, profileRepo)
	ctx := context.Background()

	_, err := service.Register(ctx, "carol", "s3cretpass", "carol@example.com", "", "")
	require.NoError(t, err)

	_, err = service.Register(ctx, "carol", "otherpass1", "carol2@example.com", "", "")
	assert.ErrorIs(t, err, repository.ErrUserAlreadyExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	userRepo := newMockUserRepository()
	profileRepo := newMockProfileRepository()
	service := newTestUserService(userRepo, profileRepo)
	ctx := context.Background()

	_, err := service.Register(ctx, "dave", "s3cretpass", "dave@example.com", "", "")
	require.NoError(t, err)

	_, _, err = service.Login(ctx, "dave", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = service.Login(ctx, "nobody", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfileRequiresExistingProfile(t *testing.T) {
	userRepo := newMockUserRepository()
	profileRepo := newMockProfileRepository()
	service := newTestUserService(userRepo, profileRepo)
	ctx := context.Background()

	_, err := service.UpdateProfile(ctx, uuid.New(), "3 New Rd", "555-0102")
	assert.ErrorIs(t, err, repository.ErrProfileNotFound)

	user, err := service.Register(ctx, "erin", "s3cretpass", "erin@example.com", "old", "old")
	require.NoError(t, err)

	updated, err := service.UpdateProfile(ctx, user.ID, "3 New Rd", "555-0102")
	require.NoError(t, err)
	assert.Equal(t, "3 New Rd", updated.Address)

	profile, err := service.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "3 New Rd", profile.Address)
	assert.Equal(t, "555-0102", profile.Phone)
}
