// Package backend implements an in-memory stand-in for the Fustan backend:
// the REST surface the sync agent talks to plus the websocket endpoint it
// listens on. Intended for local development and integration testing.
package backend

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fustanlabs/fustan-sync/internal/auth/jwt"
	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/internal/common/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// User is a seeded account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	PasswordHash []byte    `json:"-"`
}

// Notification mirrors the wire shape the agent consumes.
type Notification struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	ActionURL string    `json:"actionUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// frame is the websocket wire format.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Server holds the mock state.
type Server struct {
	logger *zap.Logger
	jwt    *jwt.Service

	mu            sync.Mutex
	users         map[string]*User // by email
	notifications map[int64][]*Notification
	chatUnread    map[int64]int
	nextID        int64

	hub      *hub
	upgrader websocket.Upgrader
}

// NewServer creates a mock server with a few seeded accounts.
func NewServer(logger *zap.Logger, cfg config.JWTConfig) (*Server, error) {
	svc, err := jwt.NewService(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:        logger.Named("mock-api"),
		jwt:           svc,
		users:         make(map[string]*User),
		notifications: make(map[int64][]*Notification),
		chatUnread:    make(map[int64]int),
		nextID:        1000,
		hub:           newHub(logger),
	}
	s.seed()
	return s, nil
}

func (s *Server) seed() {
	seedUsers := []struct {
		id       int64
		name     string
		email    string
		role     string
		password string
	}{
		{1, "Amal", "amal@fustan.example", "customer", "password1"},
		{2, "Sara", "sara@fustan.example", "vendor", "password2"},
	}
	for _, u := range seedUsers {
		hash, _ := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		s.users[u.email] = &User{
			ID:           u.id,
			Name:         u.name,
			Email:        u.email,
			Role:         u.role,
			CreatedAt:    time.Now().UTC(),
			PasswordHash: hash,
		}
	}
}

// Router builds the gin router with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group(cnst.APIPathPrefix)
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", s.requireAuth)
	authed.GET("/auth/me", s.handleMe)
	authed.POST("/auth/logout", s.handleLogout)
	authed.GET("/notifications", s.handleNotifications)
	authed.GET("/notifications/unread-count", s.handleUnreadCount)
	authed.PATCH("/notifications/:id/read", s.handleMarkRead)
	authed.PATCH("/notifications/read-all", s.handleMarkAllRead)
	authed.GET("/chat/unread-count", s.handleChatUnreadCount)

	// development hooks for driving the agent
	api.POST("/dev/notify", s.handleDevNotify)
	api.POST("/dev/message", s.handleDevMessage)

	r.GET(cnst.DefaultSocketPath, s.handleSocket)
	return r
}

func (s *Server) requireAuth(c *gin.Context) {
	token := bearerToken(c.Request)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set("userID", claims.UserID)
	c.Set("email", claims.Email)
	c.Next()
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	user, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (s *Server) handleMe(c *gin.Context) {
	user := s.userByID(c.GetInt64("userID"))
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleLogout(c *gin.Context) {
	// tokens are stateless; logout is acknowledged, not recorded
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (s *Server) handleNotifications(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[c.GetInt64("userID")]
	if list == nil {
		list = []*Notification{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications[c.GetInt64("userID")] {
		if !n.IsRead {
			count++
		}
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[c.GetInt64("userID")] {
		if n.ID == id {
			n.IsRead = true
			c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[c.GetInt64("userID")] {
		n.IsRead = true
	}
	c.JSON(http.StatusOK, gin.H{"message": "all marked as read"})
}

func (s *Server) handleChatUnreadCount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"count": s.chatUnread[c.GetInt64("userID")]})
}

// handleDevNotify stores a notification for a user and pushes it over any
// open channel, the way the real backend does on order activity.
func (s *Server) handleDevNotify(c *gin.Context) {
	var req struct {
		UserID    int64  `json:"userId" binding:"required"`
		Type      string `json:"type" binding:"required"`
		Title     string `json:"title" binding:"required"`
		Message   string `json:"message"`
		ActionURL string `json:"actionUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.nextID++
	n := &Notification{
		ID:        s.nextID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		ActionURL: req.ActionURL,
		CreatedAt: time.Now().UTC(),
	}
	s.notifications[req.UserID] = append(s.notifications[req.UserID], n)
	s.mu.Unlock()

	s.hub.push(req.UserID, cnst.EventNotification, n)
	c.JSON(http.StatusCreated, n)
}

// handleDevMessage bumps a user's chat unread count and pushes the message
// event.
func (s *Server) handleDevMessage(c *gin.Context) {
	var req struct {
		UserID     int64  `json:"userId" binding:"required"`
		SenderID   int64  `json:"senderId" binding:"required"`
		SenderName string `json:"senderName"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.chatUnread[req.UserID]++
	s.mu.Unlock()

	s.hub.push(req.UserID, cnst.EventReceiveMsg, gin.H{
		"senderId":   req.SenderID,
		"senderName": req.SenderName,
		"content":    req.Content,
	})
	c.JSON(http.StatusCreated, gin.H{"message": "delivered"})
}

// handleSocket upgrades the connection and waits for the join handshake
// before the connection can receive anything.
func (s *Server) handleSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	var join frame
	if err := json.Unmarshal(msg, &join); err != nil || join.Event != cnst.EventJoin {
		s.logger.Warn("closing connection without join handshake")
		conn.Close()
		return
	}
	var userID int64
	if err := json.Unmarshal(join.Data, &userID); err != nil || userID == 0 {
		conn.Close()
		return
	}

	s.hub.add(userID, conn)
}

func (s *Server) userByID(id int64) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
