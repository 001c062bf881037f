package service

import (
	"errors"
	"sort"
	"time"

	"github.com/Jacobgokul/Pinge/internal/metrics"
	"github.com/Jacobgokul/Pinge/internal/models"
	"github.com/Jacobgokul/Pinge/internal/notify"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// MessageService persists direct and group messages, answers unread
// queries and hands delivery events to the dispatcher after the write
// has committed.
type MessageService struct {
	db         *gorm.DB
	dispatcher *notify.Dispatcher
}

func NewMessageService(db *gorm.DB, dispatcher *notify.Dispatcher) *MessageService {
	return &MessageService{db: db, dispatcher: dispatcher}
}

// clampPage normalizes pagination to limit in [1,100] (default 50) and
// offset >= 0.
func clampPage(limit, offset int) (int, int) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type DirectMessageDTO struct {
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	SentAt     time.Time `json:"sent_at"`
}

type GroupMessageDTO struct {
	MessageID  string    `json:"message_id"`
	GroupID    string    `json:"group_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

// SendDirect persists the message, recomputes the receiver's unread
// badge and only then attempts the live push. Persistence strictly
// precedes notification so a crash in between never leaves a
// notified-but-unpersisted message.
func (s *MessageService) SendDirect(sender *models.User, receiverID, content string) (*DirectMessageDTO, error) {
	if _, err := uuid.Parse(receiverID); err != nil {
		return nil, Invalid("invalid receiver ID")
	}
	if content == "" {
		return nil, Invalid("content is required")
	}
	var receiver models.User
	if err := s.db.Where("id = ? AND active = ?", receiverID, true).First(&receiver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("user not found")
		}
		return nil, err
	}

	msg := models.DirectMessage{SenderID: sender.ID, ReceiverID: receiver.ID, Content: content}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues("direct").Inc()

	var totalUnread int64
	if err := s.db.Model(&models.DirectMessage{}).
		Where("receiver_id = ? AND is_read = ?", receiver.ID, false).
		Count(&totalUnread).Error; err != nil {
		return nil, err
	}

	s.dispatcher.DirectMessage(receiver.ID, notify.DirectMessageData{
		MessageID:   msg.ID,
		SenderID:    sender.ID,
		SenderName:  sender.Username,
		Content:     msg.Content,
		SentAt:      msg.SentAt,
		TotalUnread: totalUnread,
	})

	return &DirectMessageDTO{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: sender.Username,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		IsRead:     msg.IsRead,
		SentAt:     msg.SentAt,
	}, nil
}

// DirectHistory returns the conversation between the caller and one
// contact, most recent first.
func (s *MessageService) DirectHistory(userID, contactID string, limit, offset int) ([]DirectMessageDTO, error) {
	if _, err := uuid.Parse(contactID); err != nil {
		return nil, Invalid("invalid contact ID")
	}
	limit, offset = clampPage(limit, offset)
	var msgs []models.DirectMessage
	err := s.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, contactID, contactID, userID).
		Order("sent_at desc").Limit(limit).Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(msgs, func(m models.DirectMessage, _ int) DirectMessageDTO {
		return DirectMessageDTO{MessageID: m.ID, SenderID: m.SenderID, ReceiverID: m.ReceiverID, Content: m.Content, IsRead: m.IsRead, SentAt: m.SentAt}
	}), nil
}

func (s *MessageService) membership(tx *gorm.DB, groupID, userID string) (*models.GroupMember, error) {
	var member models.GroupMember
	if err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// SendGroup requires current membership before the write. The check,
// the insert and the member snapshot share one transaction so a
// concurrent leave cannot land a message from an ex-member.
func (s *MessageService) SendGroup(sender *models.User, groupID, content string) (*GroupMessageDTO, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, Invalid("invalid group ID")
	}
	if content == "" {
		return nil, Invalid("content is required")
	}

	msg := models.GroupMessage{GroupID: groupID, SenderID: sender.ID, Content: content}
	var memberIDs []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		member, err := s.membership(tx, groupID, sender.ID)
		if err != nil {
			return err
		}
		if member == nil {
			return Forbidden("you are not a member of this group")
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		var members []models.GroupMember
		if err := tx.Where("group_id = ?", groupID).Find(&members).Error; err != nil {
			return err
		}
		memberIDs = lo.Map(members, func(m models.GroupMember, _ int) string { return m.UserID })
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues("group").Inc()

	s.dispatcher.GroupMessage(memberIDs, sender.ID, notify.GroupMessageData{
		MessageID:  msg.ID,
		GroupID:    msg.GroupID,
		SenderID:   msg.SenderID,
		SenderName: sender.Username,
		Content:    msg.Content,
		SentAt:     msg.SentAt,
	})

	return &GroupMessageDTO{MessageID: msg.ID, GroupID: msg.GroupID, SenderID: msg.SenderID, SenderName: sender.Username, Content: msg.Content, SentAt: msg.SentAt}, nil
}

// GroupHistory returns a group's messages, most recent first, with the
// sender names resolved. Callers must be current members.
func (s *MessageService) GroupHistory(userID, groupID string, limit, offset int) ([]GroupMessageDTO, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, Invalid("invalid group ID")
	}
	member, err := s.membership(s.db, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, Forbidden("you are not a member of this group")
	}
	limit, offset = clampPage(limit, offset)

	type row struct {
		ID       string
		GroupID  string
		SenderID string
		Username string
		Content  string
		SentAt   time.Time
	}
	var rows []row
	err = s.db.Model(&models.GroupMessage{}).
		Select("group_messages.id, group_messages.group_id, group_messages.sender_id, users.username, group_messages.content, group_messages.sent_at").
		Joins("JOIN users ON users.id = group_messages.sender_id").
		Where("group_messages.group_id = ?", groupID).
		Order("group_messages.sent_at desc").Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r row, _ int) GroupMessageDTO {
		return GroupMessageDTO{MessageID: r.ID, GroupID: r.GroupID, SenderID: r.SenderID, SenderName: r.Username, Content: r.Content, SentAt: r.SentAt}
	}), nil
}

// ListUnread returns every unread direct message for the caller, newest
// first, with sender names resolved.
func (s *MessageService) ListUnread(userID string) ([]DirectMessageDTO, error) {
	type row struct {
		ID         string
		SenderID   string
		Username   string
		ReceiverID string
		Content    string
		IsRead     bool
		SentAt     time.Time
	}
	var rows []row
	err := s.db.Model(&models.DirectMessage{}).
		Select("direct_messages.id, direct_messages.sender_id, users.username, direct_messages.receiver_id, direct_messages.content, direct_messages.is_read, direct_messages.sent_at").
		Joins("JOIN users ON users.id = direct_messages.sender_id").
		Where("direct_messages.receiver_id = ? AND direct_messages.is_read = ?", userID, false).
		Order("direct_messages.sent_at desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r row, _ int) DirectMessageDTO {
		return DirectMessageDTO{MessageID: r.ID, SenderID: r.SenderID, SenderName: r.Username, ReceiverID: r.ReceiverID, Content: r.Content, IsRead: r.IsRead, SentAt: r.SentAt}
	}), nil
}

type ContactUnread struct {
	ContactID     string    `json:"contact_id"`
	ContactName   string    `json:"contact_name"`
	UnreadCount   int64     `json:"unread_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

type GroupUnread struct {
	GroupID       string    `json:"group_id"`
	GroupName     string    `json:"group_name"`
	UnreadCount   int64     `json:"unread_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

type UnreadSummary struct {
	TotalUnread        int64           `json:"total_unread"`
	ContactsWithUnread []ContactUnread `json:"contacts_with_unread"`
	GroupsWithUnread   []GroupUnread   `json:"groups_with_unread"`
	TotalGroupUnread   int64           `json:"total_group_unread"`
}

// Summary aggregates unread state across both message kinds: direct
// messages grouped by sender, groups counted against the caller's
// watermark (own messages excluded). Only groups with activity appear;
// both breakdowns are ordered most recent first.
func (s *MessageService) Summary(userID string) (*UnreadSummary, error) {
	summary := &UnreadSummary{
		ContactsWithUnread: []ContactUnread{},
		GroupsWithUnread:   []GroupUnread{},
	}

	type contactRow struct {
		SenderID      string
		Username      string
		UnreadCount   int64
		LastMessageAt time.Time
	}
	var contactRows []contactRow
	err := s.db.Model(&models.DirectMessage{}).
		Select("direct_messages.sender_id, users.username, count(*) as unread_count, max(direct_messages.sent_at) as last_message_at").
		Joins("JOIN users ON users.id = direct_messages.sender_id").
		Where("direct_messages.receiver_id = ? AND direct_messages.is_read = ?", userID, false).
		Group("direct_messages.sender_id, users.username").
		Order("last_message_at desc").
		Scan(&contactRows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range contactRows {
		summary.ContactsWithUnread = append(summary.ContactsWithUnread, ContactUnread{
			ContactID: r.SenderID, ContactName: r.Username, UnreadCount: r.UnreadCount, LastMessageAt: r.LastMessageAt,
		})
		summary.TotalUnread += r.UnreadCount
	}

	type membershipRow struct {
		GroupID    string
		Name       string
		LastReadAt time.Time
	}
	var memberships []membershipRow
	err = s.db.Model(&models.GroupMember{}).
		Select("group_members.group_id, groups.name, group_members.last_read_at").
		Joins("JOIN groups ON groups.id = group_members.group_id").
		Where("group_members.user_id = ?", userID).
		Scan(&memberships).Error
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		type aggRow struct {
			UnreadCount   int64
			LastMessageAt time.Time
		}
		var agg aggRow
		err := s.db.Model(&models.GroupMessage{}).
			Select("count(*) as unread_count, max(sent_at) as last_message_at").
			Where("group_id = ? AND sent_at > ? AND sender_id != ?", m.GroupID, m.LastReadAt, userID).
			Scan(&agg).Error
		if err != nil {
			return nil, err
		}
		if agg.UnreadCount > 0 {
			summary.GroupsWithUnread = append(summary.GroupsWithUnread, GroupUnread{
				GroupID: m.GroupID, GroupName: m.Name, UnreadCount: agg.UnreadCount, LastMessageAt: agg.LastMessageAt,
			})
			summary.TotalGroupUnread += agg.UnreadCount
		}
	}
	sort.Slice(summary.GroupsWithUnread, func(i, j int) bool {
		return summary.GroupsWithUnread[i].LastMessageAt.After(summary.GroupsWithUnread[j].LastMessageAt)
	})

	return summary, nil
}

// MarkMessagesRead flips the read flag on the caller's received
// messages. IDs that belong to someone else are silently ignored;
// already-read rows are not counted again, so the call is idempotent.
// Only an id set that resolves to zero eligible rows is an error.
func (s *MessageService) MarkMessagesRead(userID string, messageIDs []string) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, Invalid("message_ids is required")
	}
	for _, id := range messageIDs {
		if _, err := uuid.Parse(id); err != nil {
			return 0, Invalid("invalid message ID: " + id)
		}
	}
	var eligible int64
	if err := s.db.Model(&models.DirectMessage{}).
		Where("id IN ? AND receiver_id = ?", messageIDs, userID).
		Count(&eligible).Error; err != nil {
		return 0, err
	}
	if eligible == 0 {
		return 0, NotFound("no messages found to mark as read")
	}
	res := s.db.Model(&models.DirectMessage{}).
		Where("id IN ? AND receiver_id = ? AND is_read = ?", messageIDs, userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// MarkContactRead marks every unread message from one sender as read.
func (s *MessageService) MarkContactRead(userID, contactID string) (int64, error) {
	if _, err := uuid.Parse(contactID); err != nil {
		return 0, Invalid("invalid contact ID")
	}
	res := s.db.Model(&models.DirectMessage{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", contactID, userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// MarkGroupRead advances the caller's watermark to now. The guard in
// the WHERE clause keeps the advance monotonic: a concurrent call with
// a slightly stale clock can never move the watermark backwards.
func (s *MessageService) MarkGroupRead(userID, groupID string) error {
	if _, err := uuid.Parse(groupID); err != nil {
		return Invalid("invalid group ID")
	}
	member, err := s.membership(s.db, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return NotFound("you are not a member of this group")
	}
	now := time.Now().UTC()
	return s.db.Model(&models.GroupMember{}).
		Where("id = ? AND last_read_at < ?", member.ID, now).
		Update("last_read_at", now).Error
}
