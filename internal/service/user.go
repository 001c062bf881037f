package service

import (
	"errors"
	"regexp"

	"github.com/Jacobgokul/Pinge/internal/auth"
	"github.com/Jacobgokul/Pinge/internal/config"
	"github.com/Jacobgokul/Pinge/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

var validate = validator.New()

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[ !@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

// UserService owns registration and the session lifecycle.
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

type UserDTO struct {
	ID       string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func userDTO(u models.User) UserDTO {
	return UserDTO{ID: u.ID, Email: u.Email, Username: u.Username}
}

func passwordComplexityOK(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	return upperRe.MatchString(pw) && lowerRe.MatchString(pw) && digitRe.MatchString(pw) && specialRe.MatchString(pw)
}

// Register creates a new account. Email must be well-formed and unused;
// the password must pass the complexity rules before it is hashed.
func (s *UserService) Register(email, username, password string) (*UserDTO, error) {
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, Invalid("mail id was not valid")
	}
	if username == "" {
		return nil, Invalid("username is required")
	}
	if !passwordComplexityOK(password) {
		return nil, Invalid("password must be at least 8 characters with upper, lower, digit and special characters")
	}
	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, Conflict("email already registered, try a different one")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Email: email, Username: username, PasswordHash: hash, Active: true}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	dto := userDTO(user)
	return &dto, nil
}

type LoginResult struct {
	Token string  `json:"access_token"`
	User  UserDTO `json:"user"`
}

// Login verifies the password and issues a fresh session-bound token
// for this device. Each login gets its own session row, so one device
// can log out without touching the others.
func (s *UserService) Login(email, password, userAgent, clientIP string) (*LoginResult, error) {
	var user models.User
	if err := s.db.Where("email = ? AND active = ?", email, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Unauthorized("invalid credentials")
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, Unauthorized("invalid credentials")
	}
	token, err := auth.IssueSession(s.db, s.cfg, user.ID, userAgent, clientIP)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: userDTO(user)}, nil
}

// Logout revokes the presented credential only; the user's other
// sessions stay valid.
func (s *UserService) Logout(token string) error {
	switch err := auth.RevokeSession(s.db, token); {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrSessionNotFound):
		return NotFound("session not found")
	case errors.Is(err, auth.ErrSessionRevoked):
		return Conflict("already logged out")
	default:
		return err
	}
}

// ListUsers returns every active account, for contact discovery.
func (s *UserService) ListUsers() ([]UserDTO, error) {
	var users []models.User
	if err := s.db.Where("active = ?", true).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return lo.Map(users, func(u models.User, _ int) UserDTO { return userDTO(u) }), nil
}
