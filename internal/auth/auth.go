package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Jacobgokul/Pinge/internal/config"
	"github.com/Jacobgokul/Pinge/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session already revoked")
)

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func GenerateToken(userID, secret string, ttlDays int) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps two logins in the same second from minting
			// identical token strings; sessions are keyed by the exact
			// string.
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlDays) * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// IssueSession mints a signed token and binds it to a session row. The
// row insert failing fails the whole login; no token leaves this
// function without a matching session.
func IssueSession(db *gorm.DB, cfg config.Config, userID, userAgent, clientIP string) (string, error) {
	token, err := GenerateToken(userID, cfg.JWTSecret, cfg.TokenTTLDays)
	if err != nil {
		return "", err
	}
	sess := models.Session{UserID: userID, Token: token, UserAgent: userAgent, ClientIP: clientIP, Active: true}
	if err := db.Create(&sess).Error; err != nil {
		return "", err
	}
	return token, nil
}

// ValidateSession checks two independent predicates: the signature and
// expiry of the token itself, then the liveness of the session row bound
// to that exact token string. A signature-valid token that was never
// issued, or whose session was logged out, is rejected.
func ValidateSession(db *gorm.DB, cfg config.Config, tokenStr string) (*models.User, error) {
	claims, err := ParseToken(tokenStr, cfg.JWTSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var sess models.Session
	if err := db.Where("token = ? AND active = ?", tokenStr, true).First(&sess).Error; err != nil {
		return nil, ErrInvalidToken
	}
	var user models.User
	if err := db.Where("id = ? AND active = ?", claims.UserID, true).First(&user).Error; err != nil {
		return nil, ErrInvalidToken
	}
	return &user, nil
}

// RevokeSession flips the bound session to inactive. Revoking an already
// inactive session is reported distinctly so logout can signal "already
// logged out" instead of silently succeeding twice.
func RevokeSession(db *gorm.DB, tokenStr string) error {
	var sess models.Session
	if err := db.Where("token = ?", tokenStr).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if !sess.Active {
		return ErrSessionRevoked
	}
	return db.Model(&sess).Update("active", false).Error
}

// BearerToken extracts the raw credential from the Authorization header.
func BearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}

func AuthMiddleware(cfg config.Config, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		user, err := ValidateSession(db, cfg, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("userID", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if id, ok2 := v.(string); ok2 {
			return id
		}
	}
	return ""
}

func GetUser(c *gin.Context) *models.User {
	if v, ok := c.Get("user"); ok {
		if u, ok2 := v.(*models.User); ok2 {
			return u
		}
	}
	return nil
}
