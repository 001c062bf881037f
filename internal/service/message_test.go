package service

import (
	"testing"
	"time"

	"github.com/Jacobgokul/Pinge/internal/models"
	"github.com/Jacobgokul/Pinge/internal/notify"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampPage(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"defaults", 0, 0, 50, 0},
		{"in range", 10, 5, 10, 5},
		{"limit too high", 101, 0, 50, 0},
		{"limit max", 100, 0, 100, 0},
		{"negative offset", 20, -3, 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := clampPage(tt.limit, tt.offset)
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)", tt.limit, tt.offset, limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestSendDirect(t *testing.T) {
	db := setupTestDB(t)
	svc, sender := newMessageService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	msg, err := svc.SendDirect(alice, bob.ID, "hello bob")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.ReceiverID)
	assert.False(t, msg.IsRead)

	events := sender.events()
	require.Len(t, events, 1)
	assert.Equal(t, bob.ID, events[0].UserID)
	assert.Equal(t, "new_direct_message", events[0].Event.Event)
	data := events[0].Event.Data.(notify.DirectMessageData)
	assert.Equal(t, msg.MessageID, data.MessageID)
	assert.Equal(t, "alice", data.SenderName)
	assert.Equal(t, int64(1), data.TotalUnread)
}

func TestSendDirect_UnreadBadgeAccumulates(t *testing.T) {
	db := setupTestDB(t)
	svc, sender := newMessageService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	_, err := svc.SendDirect(alice, bob.ID, "one")
	require.NoError(t, err)
	_, err = svc.SendDirect(alice, bob.ID, "two")
	require.NoError(t, err)

	events := sender.events()
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[1].Event.Data.(notify.DirectMessageData).TotalUnread)
}

func TestSendDirect_Errors(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	alice := createUser(t, db, "alice@example.com", "alice")

	_, err := svc.SendDirect(alice, "not-a-uuid", "hi")
	assertKind(t, err, KindValidation)

	_, err = svc.SendDirect(alice, uuid.NewString(), "hi")
	assertKind(t, err, KindNotFound)

	bob := createUser(t, db, "bob@example.com", "bob")
	_, err = svc.SendDirect(alice, bob.ID, "")
	assertKind(t, err, KindValidation)
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	se, ok := err.(*Error)
	require.True(t, ok, "expected *service.Error, got %T: %v", err, err)
	assert.Equal(t, kind, se.Kind)
}

func TestDirectHistory(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	base := time.Now().UTC()
	for i, content := range []string{"first", "second", "third"} {
		sender, receiver := alice, bob
		if i == 1 {
			sender, receiver = bob, alice
		}
		m := models.DirectMessage{SenderID: sender.ID, ReceiverID: receiver.ID, Content: content, SentAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, db.Create(&m).Error)
	}

	msgs, err := svc.DirectHistory(alice.ID, bob.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "third", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "first", msgs[2].Content)

	// Pagination slices from the most recent side.
	page, err := svc.DirectHistory(alice.ID, bob.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "second", page[0].Content)
}

func TestSendGroup_RequiresMembership(t *testing.T) {
	db := setupTestDB(t)
	svc, sender := newMessageService(db)
	groupSvc := NewGroupService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")
	carol := createUser(t, db, "carol@example.com", "carol")

	group, err := groupSvc.Create(alice, "team", "", []string{bob.ID})
	require.NoError(t, err)

	_, err = svc.SendGroup(carol, group.GroupID, "let me in")
	assertKind(t, err, KindForbidden)

	msg, err := svc.SendGroup(alice, group.GroupID, "hello team")
	require.NoError(t, err)

	// Only bob is notified; the sender's own UI already has the message.
	events := sender.events()
	require.Len(t, events, 1)
	assert.Equal(t, bob.ID, events[0].UserID)
	assert.Equal(t, "new_group_message", events[0].Event.Event)
	assert.Equal(t, msg.MessageID, events[0].Event.Data.(notify.GroupMessageData).MessageID)
}

func TestSendGroup_AfterLeaveFails(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	groupSvc := NewGroupService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	group, err := groupSvc.Create(alice, "team", "", []string{bob.ID})
	require.NoError(t, err)

	require.NoError(t, groupSvc.Leave(bob.ID, group.GroupID))
	_, err = svc.SendGroup(bob, group.GroupID, "still here?")
	assertKind(t, err, KindForbidden)

	// The refused send rolls back as a whole; nothing was persisted.
	var count int64
	require.NoError(t, db.Model(&models.GroupMessage{}).Where("group_id = ?", group.GroupID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestGroupHistory(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	groupSvc := NewGroupService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	group, err := groupSvc.Create(alice, "team", "", []string{bob.ID})
	require.NoError(t, err)

	base := time.Now().UTC()
	for i, content := range []string{"one", "two"} {
		m := models.GroupMessage{GroupID: group.GroupID, SenderID: alice.ID, Content: content, SentAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, db.Create(&m).Error)
	}

	msgs, err := svc.GroupHistory(bob.ID, group.GroupID, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "alice", msgs[0].SenderName)

	carol := createUser(t, db, "carol@example.com", "carol")
	_, err = svc.GroupHistory(carol.ID, group.GroupID, 50, 0)
	assertKind(t, err, KindForbidden)
}

func TestMarkMessagesRead_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	m1, err := svc.SendDirect(alice, bob.ID, "one")
	require.NoError(t, err)
	m2, err := svc.SendDirect(alice, bob.ID, "two")
	require.NoError(t, err)
	ids := []string{m1.MessageID, m2.MessageID}

	count, err := svc.MarkMessagesRead(bob.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Second call is a no-op, not an error and not double-counted.
	count, err = svc.MarkMessagesRead(bob.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	var msg models.DirectMessage
	require.NoError(t, db.First(&msg, "id = ?", m1.MessageID).Error)
	assert.True(t, msg.IsRead)
}

func TestMarkMessagesRead_OwnershipAndNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	m, err := svc.SendDirect(alice, bob.ID, "for bob")
	require.NoError(t, err)

	// The sender cannot mark the receiver's copy: zero eligible rows.
	_, err = svc.MarkMessagesRead(alice.ID, []string{m.MessageID})
	assertKind(t, err, KindNotFound)

	// Foreign ids mixed with an owned one are silently ignored.
	count, err := svc.MarkMessagesRead(bob.ID, []string{m.MessageID, uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = svc.MarkMessagesRead(bob.ID, []string{"garbage"})
	assertKind(t, err, KindValidation)
}

func TestMarkContactRead(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")
	carol := createUser(t, db, "carol@example.com", "carol")

	_, err := svc.SendDirect(alice, bob.ID, "one")
	require.NoError(t, err)
	_, err = svc.SendDirect(alice, bob.ID, "two")
	require.NoError(t, err)
	_, err = svc.SendDirect(carol, bob.ID, "hi from carol")
	require.NoError(t, err)

	count, err := svc.MarkContactRead(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Carol's message is untouched.
	summary, err := svc.Summary(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalUnread)
	require.Len(t, summary.ContactsWithUnread, 1)
	assert.Equal(t, carol.ID, summary.ContactsWithUnread[0].ContactID)
}

func TestMarkGroupRead_MonotonicWatermark(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	groupSvc := NewGroupService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	group, err := groupSvc.Create(alice, "team", "", []string{bob.ID})
	require.NoError(t, err)

	// Park the watermark in the future; marking read must not move it
	// backwards.
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.GroupID, bob.ID).
		Update("last_read_at", future).Error)

	require.NoError(t, svc.MarkGroupRead(bob.ID, group.GroupID))

	var member models.GroupMember
	require.NoError(t, db.First(&member, "group_id = ? AND user_id = ?", group.GroupID, bob.ID).Error)
	assert.False(t, member.LastReadAt.Before(future), "watermark moved backwards")

	carol := createUser(t, db, "carol@example.com", "carol")
	err = svc.MarkGroupRead(carol.ID, group.GroupID)
	assertKind(t, err, KindNotFound)
}

func TestSummary(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	groupSvc := NewGroupService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	_, err := svc.SendDirect(alice, bob.ID, "one")
	require.NoError(t, err)
	_, err = svc.SendDirect(alice, bob.ID, "two")
	require.NoError(t, err)

	summary, err := svc.Summary(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalUnread)
	assert.Equal(t, int64(0), summary.TotalGroupUnread)
	require.Len(t, summary.ContactsWithUnread, 1)
	assert.Equal(t, alice.ID, summary.ContactsWithUnread[0].ContactID)
	assert.Equal(t, "alice", summary.ContactsWithUnread[0].ContactName)
	assert.Equal(t, int64(2), summary.ContactsWithUnread[0].UnreadCount)
	assert.Empty(t, summary.GroupsWithUnread)

	// Group activity after the watermark counts, own messages do not.
	group, err := groupSvc.Create(alice, "team", "", []string{bob.ID})
	require.NoError(t, err)
	future := time.Now().UTC().Add(time.Second)
	require.NoError(t, db.Create(&models.GroupMessage{GroupID: group.GroupID, SenderID: alice.ID, Content: "news", SentAt: future}).Error)
	require.NoError(t, db.Create(&models.GroupMessage{GroupID: group.GroupID, SenderID: bob.ID, Content: "mine", SentAt: future.Add(time.Second)}).Error)

	summary, err = svc.Summary(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalGroupUnread)
	require.Len(t, summary.GroupsWithUnread, 1)
	assert.Equal(t, group.GroupID, summary.GroupsWithUnread[0].GroupID)
	assert.Equal(t, "team", summary.GroupsWithUnread[0].GroupName)

	// Advancing the watermark clears the group unread.
	require.NoError(t, db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.GroupID, bob.ID).
		Update("last_read_at", future.Add(time.Minute)).Error)
	summary, err = svc.Summary(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.TotalGroupUnread)
	assert.Empty(t, summary.GroupsWithUnread)
}

func TestListUnread(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newMessageService(db)
	alice := createUser(t, db, "alice@example.com", "alice")
	bob := createUser(t, db, "bob@example.com", "bob")

	first, err := svc.SendDirect(alice, bob.ID, "oldest")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.DirectMessage{}).Where("id = ?", first.MessageID).
		Update("sent_at", time.Now().UTC().Add(-time.Minute)).Error)
	_, err = svc.SendDirect(alice, bob.ID, "newest")
	require.NoError(t, err)

	msgs, err := svc.ListUnread(bob.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "newest", msgs[0].Content)
	assert.Equal(t, "alice", msgs[0].SenderName)

	// The sender has nothing unread.
	msgs, err = svc.ListUnread(alice.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
