package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupRole string

const (
	RoleAdmin  GroupRole = "Admin"
	RoleMember GroupRole = "Member"
)

type ContactRequestStatus string

const (
	RequestPending  ContactRequestStatus = "Pending"
	RequestAccepted ContactRequestStatus = "Accepted"
	RequestRejected ContactRequestStatus = "Rejected"
)

type User struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	Username     string `gorm:"size:64;not null"`
	PasswordHash string `gorm:"not null"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Session binds one issued token to one user and one device. Rows are
// never deleted here, only flipped to inactive on logout.
type Session struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	UserID    string `gorm:"type:uuid;index;not null"`
	Token     string `gorm:"uniqueIndex;size:512;not null"`
	UserAgent string `gorm:"size:255"`
	ClientIP  string `gorm:"size:64"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type Contact struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	UserID    string `gorm:"type:uuid;uniqueIndex:idx_contact_pair;not null"`
	ContactID string `gorm:"type:uuid;uniqueIndex:idx_contact_pair;not null"`
	CreatedAt time.Time
}

func (c *Contact) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

type ContactRequest struct {
	ID         string               `gorm:"type:uuid;primaryKey"`
	SenderID   string               `gorm:"type:uuid;index;not null"`
	ReceiverID string               `gorm:"type:uuid;index;not null"`
	Status     ContactRequestStatus `gorm:"size:16;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r *ContactRequest) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// DirectMessage content is immutable after creation; only IsRead may
// change, and only from false to true.
type DirectMessage struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	SenderID   string    `gorm:"type:uuid;index;not null"`
	ReceiverID string    `gorm:"type:uuid;index;not null"`
	Content    string    `gorm:"type:text;not null"`
	IsRead     bool      `gorm:"not null;default:false"`
	SentAt     time.Time `gorm:"index;not null"`
}

func (m *DirectMessage) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	return nil
}

type Group struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	CreatedBy   string `gorm:"type:uuid;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (g *Group) BeforeCreate(_ *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// GroupMember carries the per-member read watermark: group messages at
// or before LastReadAt count as read for this member.
type GroupMember struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	GroupID    string    `gorm:"type:uuid;uniqueIndex:idx_group_user;not null"`
	UserID     string    `gorm:"type:uuid;uniqueIndex:idx_group_user;not null"`
	Role       GroupRole `gorm:"size:16;not null"`
	JoinedAt   time.Time `gorm:"not null"`
	LastReadAt time.Time `gorm:"not null"`
}

func (m *GroupMember) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	if m.LastReadAt.IsZero() {
		m.LastReadAt = m.JoinedAt
	}
	return nil
}

// GroupMessage rows are fully immutable; read state is derived from
// each member's watermark, not stored per message.
type GroupMessage struct {
	ID       string    `gorm:"type:uuid;primaryKey"`
	GroupID  string    `gorm:"type:uuid;index;not null"`
	SenderID string    `gorm:"type:uuid;index;not null"`
	Content  string    `gorm:"type:text;not null"`
	SentAt   time.Time `gorm:"index;not null"`
}

func (m *GroupMessage) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	return nil
}
