package auth

import (
	"testing"

	"github.com/Jacobgokul/Pinge/internal/config"
	"github.com/Jacobgokul/Pinge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "Password123!", false},
		{"empty password", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("HashPassword() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && hash == "" {
				t.Error("HashPassword() returned empty hash")
			}
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	password := "testPassword123!"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
	}{
		{"correct password", hash, password, true},
		{"wrong password", hash, "wrongpassword", false},
		{"empty password", hash, "", false},
		{"invalid hash", "invalidhash", password, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.hash, tt.password); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseToken(t *testing.T) {
	secret := "test-secret-key"
	userID := "2a7c74ef-6a13-4c4c-9a3b-0f33e9f0e0a1"

	token, err := GenerateToken(userID, secret, 7)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		secret  string
		wantUID string
		wantErr bool
	}{
		{"valid token", token, secret, userID, false},
		{"wrong secret", token, "wrong-secret", "", true},
		{"invalid token", "invalid.token.here", secret, "", true},
		{"empty token", "", secret, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseToken(tt.token, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && claims.UserID != tt.wantUID {
				t.Errorf("ParseToken() UserID = %v, want %v", claims.UserID, tt.wantUID)
			}
		})
	}
}

func TestParseToken_Expired(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateToken("some-user", secret, -1)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if _, err := ParseToken(token, secret); err == nil {
		t.Error("ParseToken() should return error for expired token")
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Session{}))
	return db
}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", TokenTTLDays: 7, Env: "dev"}
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	user := models.User{Email: "alice@example.com", Username: "alice", PasswordHash: "x", Active: true}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	user := createTestUser(t, db)

	token, err := IssueSession(db, cfg, user.ID, "test-agent", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := ValidateSession(db, cfg, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Revocation must defeat validation even though the signature is
	// still valid until natural expiry.
	require.NoError(t, RevokeSession(db, token))
	_, err = ValidateSession(db, cfg, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeSession_AlreadyRevoked(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	user := createTestUser(t, db)

	token, err := IssueSession(db, cfg, user.ID, "", "")
	require.NoError(t, err)

	require.NoError(t, RevokeSession(db, token))
	assert.ErrorIs(t, RevokeSession(db, token), ErrSessionRevoked)
}

func TestRevokeSession_NotFound(t *testing.T) {
	db := setupTestDB(t)
	assert.ErrorIs(t, RevokeSession(db, "never-issued"), ErrSessionNotFound)
}

func TestValidateSession_NeverIssued(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	user := createTestUser(t, db)

	// Signature-valid token with no backing session row must be
	// rejected: the two predicates fail independently.
	token, err := GenerateToken(user.ID, cfg.JWTSecret, cfg.TokenTTLDays)
	require.NoError(t, err)

	_, err = ValidateSession(db, cfg, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateSession_MultiDevice(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	user := createTestUser(t, db)

	t1, err := IssueSession(db, cfg, user.ID, "device-1", "10.0.0.1")
	require.NoError(t, err)
	t2, err := IssueSession(db, cfg, user.ID, "device-2", "10.0.0.2")
	require.NoError(t, err)

	// Revoking one device leaves the other session valid.
	require.NoError(t, RevokeSession(db, t1))

	_, err = ValidateSession(db, cfg, t1)
	assert.Error(t, err)
	got, err := ValidateSession(db, cfg, t2)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestValidateSession_InactiveUser(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	user := createTestUser(t, db)

	token, err := IssueSession(db, cfg, user.ID, "", "")
	require.NoError(t, err)

	require.NoError(t, db.Model(user).Update("active", false).Error)
	_, err = ValidateSession(db, cfg, token)
	assert.Error(t, err)
}
