package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docuchain/docuchain-backend/internal/config"
	"github.com/docuchain/docuchain-backend/internal/sessions"
	"github.com/docuchain/docuchain-backend/internal/tokens"
	"github.com/docuchain/docuchain-backend/internal/users"
	"github.com/docuchain/docuchain-backend/pkg/logger"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// LoginRequest authenticates by email and password.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg      *config.Config
	usersSvc *users.Service
}

func NewAuthHandler(cfg *config.Config, u *users.Service) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u}
}

// Register wires the public routes under /auth and the authenticated ones
// under the protected group.
func (h *AuthHandler) Register(public, protected *gin.RouterGroup) {
	a := public.Group("/auth")
	a.POST("/register", h.RegisterUser)
	a.POST("/login", h.Login)

	p := protected.Group("/auth")
	p.POST("/logout", h.Logout)
	p.GET("/profile", h.Profile)

	protected.GET("/users/search", h.SearchUsers)
}

// RegisterUser creates an account and returns a fresh access token.
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name, email and a password of at least 8 characters are required"})
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"message": "email already registered"})
			return
		}
		logger.Errorf("user registration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "registration failed"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		logger.Errorf("access token generation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "registration failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "user registered",
		"accessToken": access,
		"user":        u.Public(),
		"expiresIn":   int(h.cfg.JWT.AccessTokenTTL.Seconds()),
	})
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email and password are required"})
		return
	}
	u, err := h.usersSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
			return
		}
		logger.Errorf("login: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "login failed"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
	if err != nil {
		logger.Errorf("access token generation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken": access,
		"user":        u.Public(),
		"expiresIn":   int(h.cfg.JWT.AccessTokenTTL.Seconds()),
	})
}

// Logout blacklists the presented access token for its remaining lifetime.
// Stateless JWTs cannot be recalled any other way.
func (h *AuthHandler) Logout(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	var at string
	if n, _ := fmt.Sscanf(auth, "Bearer %s", &at); n != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "bearer token required"})
		return
	}
	exp, err := parseExpFromJWT(at)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "malformed token"})
		return
	}
	if ttl := time.Until(exp); ttl > 0 {
		if err := sessions.BlacklistAccessToken(c.Request.Context(), at, ttl); err != nil {
			logger.Errorf("token blacklist: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "logout failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(c *gin.Context) {
	uid, err := primitive.ObjectIDFromHex(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
		return
	}
	u, err := h.usersSvc.GetByID(c.Request.Context(), uid)
	if err != nil {
		logger.Errorf("profile lookup: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "profile lookup failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// SearchUsers finds share targets by name or email fragment.
func (h *AuthHandler) SearchUsers(c *gin.Context) {
	uid, err := primitive.ObjectIDFromHex(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if len(q) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "query must be at least 2 characters"})
		return
	}
	profiles, err := h.usersSvc.Search(c.Request.Context(), q, uid)
	if err != nil {
		logger.Errorf("user search: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": profiles, "count": len(profiles)})
}

// parseExpFromJWT decodes the JWT payload and returns the `exp` claim as time.Time.
// This performs payload-only parsing (no signature verification) and is suitable
// for computing remaining TTLs for blacklisting purposes.
func parseExpFromJWT(tok string) (time.Time, error) {
	parts := strings.Split(tok, ".")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid token")
	}
	payload := parts[1]
	b, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		// try standard base64 (pad) as a fallback
		b, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return time.Time{}, err
		}
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(b, &claims); err != nil {
		return time.Time{}, err
	}
	v, ok := claims["exp"]
	if !ok {
		return time.Time{}, fmt.Errorf("exp claim not present")
	}
	switch vv := v.(type) {
	case float64:
		return time.Unix(int64(vv), 0), nil
	case json.Number:
		i64, err := vv.Int64()
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(i64, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported exp type %T", v)
	}
}
