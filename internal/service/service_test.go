package service

import (
	"sync"
	"testing"

	"github.com/Jacobgokul/Pinge/internal/auth"
	"github.com/Jacobgokul/Pinge/internal/config"
	"github.com/Jacobgokul/Pinge/internal/models"
	"github.com/Jacobgokul/Pinge/internal/notify"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Contact{},
		&models.ContactRequest{},
		&models.DirectMessage{},
		&models.Group{},
		&models.GroupMember{},
		&models.GroupMessage{},
	))
	return db
}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", TokenTTLDays: 7, Env: "dev"}
}

func createUser(t *testing.T, db *gorm.DB, email, username string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("Sup3r$ecret")
	require.NoError(t, err)
	user := models.User{Email: email, Username: username, PasswordHash: hash, Active: true}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

type sentEvent struct {
	UserID string
	Event  notify.Event
}

// fakeSender captures dispatched events instead of fanning them out.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (f *fakeSender) SendToUser(userID string, event any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{UserID: userID, Event: event.(notify.Event)})
}

func (f *fakeSender) events() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentEvent, len(f.sent))
	copy(out, f.sent)
	return out
}

func newMessageService(db *gorm.DB) (*MessageService, *fakeSender) {
	sender := &fakeSender{}
	return NewMessageService(db, notify.NewDispatcher(sender)), sender
}
