package api

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/npezzotti/go-supportchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUserId(t *testing.T) {
	tcases := []struct {
		name     string
		ctx      context.Context
		userId   int
		expected bool
	}{
		{
			name:     "no user ID",
			ctx:      context.Background(),
			expected: false,
		},
		{
			name:     "user ID set",
			ctx:      WithUserId(context.Background(), 42),
			userId:   42,
			expected: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			userId, ok := UserId(tc.ctx)
			assert.Equal(t, tc.expected, ok, "expected UserId to return %v", tc.expected)
			assert.Equal(t, tc.userId, userId, "expected UserId to return %d", tc.userId)
		})
	}
}

func TestJwtRoundTrip(t *testing.T) {
	app := &SupportChatApp{signingKey: testSigningKey}

	token, err := app.createJwtForSession(types.User{Id: 7}, time.Minute)
	assert.NoError(t, err)

	userId, err := app.extractUserIdFromToken(token)
	assert.NoError(t, err)
	assert.Equal(t, 7, userId)
}

func TestExtractUserIdFromToken_Invalid(t *testing.T) {
	app := &SupportChatApp{signingKey: testSigningKey}

	expired, err := app.createJwtForSession(types.User{Id: 7}, -time.Minute)
	assert.NoError(t, err)

	other := &SupportChatApp{signingKey: []byte("other-key")}
	foreign, err := other.createJwtForSession(types.User{Id: 7}, time.Minute)
	assert.NoError(t, err)

	for name, token := range map[string]string{
		"expired":   expired,
		"wrong key": foreign,
		"garbage":   "not-a-jwt",
		"empty":     "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := app.extractUserIdFromToken(token)
			assert.Error(t, err)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("password123")
	assert.NoError(t, err)
	assert.NotEqual(t, "password123", hash)
	assert.True(t, verifyPassword(hash, "password123"))
	assert.False(t, verifyPassword(hash, "wrong-password"))
}

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	currentHash, err := hashPassword("password123")
	require.NoError(t, err)

	withHash := adminUser
	withHash.PasswordHash = currentHash

	isAdminParams := mock.MatchedBy(func(p database.CreateUserParams) bool {
		return p.Username == "admin" && p.Role == database.RoleAdmin && verifyPassword(p.PasswordHash, "password123")
	})

	t.Run("creates missing admin", func(t *testing.T) {
		db := &database.MockSupportChatRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAdmin", mock.Anything).Return(database.User{}, sql.ErrNoRows).Once()
		db.On("EnsureAdmin", mock.Anything, isAdminParams).Return(withHash, nil).Once()

		admin, err := BootstrapAdmin(ctx, db, "admin", "password123")
		assert.NoError(t, err)
		assert.Equal(t, adminUser.Id, admin.Id)
	})

	t.Run("keeps matching password", func(t *testing.T) {
		db := &database.MockSupportChatRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAdmin", mock.Anything).Return(withHash, nil).Once()

		admin, err := BootstrapAdmin(ctx, db, "admin", "password123")
		assert.NoError(t, err)
		assert.Equal(t, withHash, admin)
		db.AssertNotCalled(t, "EnsureAdmin", mock.Anything, mock.Anything)
	})

	t.Run("rotates changed password", func(t *testing.T) {
		stale, err := hashPassword("old-password")
		require.NoError(t, err)
		old := adminUser
		old.PasswordHash = stale

		db := &database.MockSupportChatRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAdmin", mock.Anything).Return(old, nil).Once()
		db.On("EnsureAdmin", mock.Anything, isAdminParams).Return(withHash, nil).Once()

		_, err = BootstrapAdmin(ctx, db, "admin", "password123")
		assert.NoError(t, err)
	})

	t.Run("store failure", func(t *testing.T) {
		db := &database.MockSupportChatRepository{}
		db.On("GetAdmin", mock.Anything).Return(database.User{}, errors.New("connection refused")).Once()

		_, err := BootstrapAdmin(ctx, db, "admin", "password123")
		assert.Error(t, err)
	})
}
