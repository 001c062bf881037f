package notify

import "time"

// Sender is the fan-out surface the dispatcher pushes through. The
// websocket registry satisfies it in production.
type Sender interface {
	SendToUser(userID string, event any)
}

// Event is the envelope every live payload travels in.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type DirectMessageData struct {
	MessageID   string    `json:"message_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	Content     string    `json:"content"`
	SentAt      time.Time `json:"sent_at"`
	TotalUnread int64     `json:"total_unread"`
}

type GroupMessageData struct {
	MessageID  string    `json:"message_id"`
	GroupID    string    `json:"group_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
}

// Dispatcher composes delivery events for durably persisted messages
// and hands them to the registry. It runs strictly after the store
// write has committed; losing a push is acceptable, losing the stored
// message is not, so nothing here ever reports failure to the caller.
type Dispatcher struct {
	sender Sender
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// DirectMessage notifies every live connection of the receiver, carrying
// the receiver's fresh total unread count as a badge value.
func (d *Dispatcher) DirectMessage(receiverID string, data DirectMessageData) {
	d.sender.SendToUser(receiverID, Event{Event: "new_direct_message", Data: data})
}

// GroupMessage notifies every group member except the sender, whose own
// UI already reflects the message.
func (d *Dispatcher) GroupMessage(memberIDs []string, senderID string, data GroupMessageData) {
	evt := Event{Event: "new_group_message", Data: data}
	for _, id := range memberIDs {
		if id == senderID {
			continue
		}
		d.sender.SendToUser(id, evt)
	}
}
