package service

import (
	"errors"
	"time"

	"github.com/Jacobgokul/Pinge/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ContactService implements the pending/accepted/rejected request flow.
type ContactService struct {
	db *gorm.DB
}

func NewContactService(db *gorm.DB) *ContactService {
	return &ContactService{db: db}
}

type ContactRequestDTO struct {
	RequestID      string    `json:"request_id"`
	SenderUsername string    `json:"sender_username"`
	SenderEmail    string    `json:"sender_email"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type ContactDTO struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SendRequest creates a pending request addressed by email. Duplicate
// pending requests in either direction and existing contacts are
// rejected up front.
func (s *ContactService) SendRequest(senderID, receiverEmail string) (string, error) {
	var receiver models.User
	if err := s.db.Where("email = ? AND active = ?", receiverEmail, true).First(&receiver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", NotFound("user with this email not found")
		}
		return "", err
	}
	if receiver.ID == senderID {
		return "", Invalid("you cannot add yourself as a contact")
	}

	var count int64
	if err := s.db.Model(&models.ContactRequest{}).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiver.ID, models.RequestPending).
		Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "", Conflict("contact request already sent")
	}
	if err := s.db.Model(&models.ContactRequest{}).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", receiver.ID, senderID, models.RequestPending).
		Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "", Conflict("you already have a pending request from this user")
	}
	if err := s.db.Model(&models.Contact{}).
		Where("user_id = ? AND contact_id = ?", senderID, receiver.ID).
		Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "", Conflict("user is already in your contacts")
	}

	req := models.ContactRequest{SenderID: senderID, ReceiverID: receiver.ID, Status: models.RequestPending}
	if err := s.db.Create(&req).Error; err != nil {
		return "", err
	}
	return req.ID, nil
}

// PendingRequests lists requests awaiting the user's decision.
func (s *ContactService) PendingRequests(userID string) ([]ContactRequestDTO, error) {
	type row struct {
		ID        string
		Username  string
		Email     string
		Status    string
		CreatedAt time.Time
	}
	var rows []row
	err := s.db.Model(&models.ContactRequest{}).
		Select("contact_requests.id, users.username, users.email, contact_requests.status, contact_requests.created_at").
		Joins("JOIN users ON users.id = contact_requests.sender_id").
		Where("contact_requests.receiver_id = ? AND contact_requests.status = ?", userID, models.RequestPending).
		Order("contact_requests.created_at desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r row, _ int) ContactRequestDTO {
		return ContactRequestDTO{RequestID: r.ID, SenderUsername: r.Username, SenderEmail: r.Email, Status: r.Status, CreatedAt: r.CreatedAt}
	}), nil
}

func (s *ContactService) pendingRequestFor(requestID, userID string) (*models.ContactRequest, error) {
	var req models.ContactRequest
	if err := s.db.Where("id = ? AND receiver_id = ?", requestID, userID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("contact request not found")
		}
		return nil, err
	}
	if req.Status != models.RequestPending {
		return nil, Conflict("contact request already handled")
	}
	return &req, nil
}

// Accept marks the request accepted and creates both directions of the
// contact relation in one transaction.
func (s *ContactService) Accept(userID, requestID string) error {
	req, err := s.pendingRequestFor(requestID, userID)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(req).Update("status", models.RequestAccepted).Error; err != nil {
			return err
		}
		pair := []models.Contact{
			{UserID: req.SenderID, ContactID: req.ReceiverID},
			{UserID: req.ReceiverID, ContactID: req.SenderID},
		}
		return tx.Create(&pair).Error
	})
}

// Reject marks the request rejected; no contact rows are created.
func (s *ContactService) Reject(userID, requestID string) error {
	req, err := s.pendingRequestFor(requestID, userID)
	if err != nil {
		return err
	}
	return s.db.Model(req).Update("status", models.RequestRejected).Error
}

// ListContacts returns the user's accepted contacts.
func (s *ContactService) ListContacts(userID string) ([]ContactDTO, error) {
	type row struct {
		ID       string
		Username string
		Email    string
	}
	var rows []row
	err := s.db.Model(&models.Contact{}).
		Select("users.id, users.username, users.email").
		Joins("JOIN users ON users.id = contacts.contact_id").
		Where("contacts.user_id = ?", userID).
		Order("users.username asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r row, _ int) ContactDTO {
		return ContactDTO{UserID: r.ID, Username: r.Username, Email: r.Email}
	}), nil
}
