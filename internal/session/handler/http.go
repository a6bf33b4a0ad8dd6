package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"session-registry/backend/internal/netinfo"
	"session-registry/backend/internal/session/domain"
	"session-registry/backend/internal/session/service"
)

// displayZone is the timezone session timestamps are rendered in. Records are
// stored in UTC; this only affects response formatting.
const (
	displayZone   = "America/Mexico_City"
	displayFormat = "02/01/2006 15:04:05"
)

// Handler serves the session registry HTTP API.
type Handler struct {
	svc  *service.Service
	zone *time.Location
}

// NewHandler returns a Handler bound to svc. If the display timezone cannot
// be loaded the handler falls back to UTC.
func NewHandler(svc *service.Service) *Handler {
	zone, err := time.LoadLocation(displayZone)
	if err != nil {
		zone = time.UTC
	}
	return &Handler{svc: svc, zone: zone}
}

// RegisterRoutes mounts all session routes on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/welcome", h.Welcome)
	r.POST("/login", h.Login)
	r.GET("/status", h.Status)
	r.POST("/update", h.Update)
	r.POST("/logout", h.Logout)
	r.GET("/allSessions", h.AllSessions)
	r.GET("/allCurrentSessions", h.AllCurrentSessions)
	r.DELETE("/deleteAllSessions", h.DeleteAllSessions)
}

type loginRequest struct {
	Email     string `json:"email"`
	Nickname  string `json:"nickname"`
	ClientMAC string `json:"clientMAC"`
}

type sessionIDRequest struct {
	SessionID string `json:"sessionId"`
}

// sessionView is the wire representation of a session record. Timestamps are
// rendered in the display timezone.
type sessionView struct {
	SessionID    string `json:"sessionId"`
	Email        string `json:"email"`
	Nickname     string `json:"nickname"`
	ClientIP     string `json:"clientIP"`
	ClientMAC    string `json:"clientMAC"`
	ServerIP     string `json:"serverIP"`
	ServerMAC    string `json:"serverMAC"`
	CreatedAt    string `json:"createdAt"`
	LastAccessed string `json:"lastAccessed"`
	Status       string `json:"status"`
}

func (h *Handler) view(s *domain.Session) sessionView {
	return sessionView{
		SessionID:    s.SessionID,
		Email:        s.Email,
		Nickname:     s.Nickname,
		ClientIP:     s.ClientNetwork.IP,
		ClientMAC:    s.ClientNetwork.MAC,
		ServerIP:     s.ServerNetwork.IP,
		ServerMAC:    s.ServerNetwork.MAC,
		CreatedAt:    s.CreatedAt.In(h.zone).Format(displayFormat),
		LastAccessed: s.LastAccessed.In(h.zone).Format(displayFormat),
		Status:       string(s.Status),
	}
}

func (h *Handler) views(list []*domain.Session) []sessionView {
	out := make([]sessionView, len(list))
	for i, s := range list {
		out[i] = h.view(s)
	}
	return out
}

// writeError maps service errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "session not found"})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"message": "session is already closed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

// Welcome returns a static greeting.
func (h *Handler) Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the session registry API",
		"author":  "Jonathan Baldemar Ramirez Reyes",
	})
}

// Login registers a new session and returns its identifier.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	rec, err := h.svc.Login(c.Request.Context(), service.LoginInput{
		Email:     req.Email,
		Nickname:  req.Nickname,
		ClientMAC: req.ClientMAC,
		ClientIP:  netinfo.NormalizeClientIP(c.ClientIP()),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "login successful",
		"sessionId": rec.SessionID,
	})
}

// Status returns a session snapshot plus its inactivity. Checking status on an
// Active session idle past the threshold closes it; the closure is persisted
// before the snapshot is returned.
func (h *Handler) Status(c *gin.Context) {
	id := c.Query("sessionId")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "sessionId is required"})
		return
	}

	rec, inactivity, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	seconds := int64(inactivity / time.Second)
	resp := gin.H{
		"session":            h.view(rec),
		"inactivitySeconds":  seconds,
		"inactivityDuration": strconv.FormatInt(seconds, 10) + " seconds",
	}
	c.JSON(http.StatusOK, resp)
}

// Update refreshes a session's lastAccessed timestamp.
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.bindSessionID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Touch(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "session updated",
		"session": h.view(rec),
	})
}

// Logout closes a session on the user's behalf. The record is retained in
// terminal state.
func (h *Handler) Logout(c *gin.Context) {
	id, ok := h.bindSessionID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Logout(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "session closed",
		"session": h.view(rec),
	})
}

// AllSessions lists every stored session in creation order.
func (h *Handler) AllSessions(c *gin.Context) {
	list, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.views(list))
}

// AllCurrentSessions lists sessions whose status is Active.
func (h *Handler) AllCurrentSessions(c *gin.Context) {
	list, err := h.svc.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.views(list))
}

// DeleteAllSessions removes every session unconditionally. There is no
// confirmation and no undo.
func (h *Handler) DeleteAllSessions(c *gin.Context) {
	if err := h.svc.PurgeAll(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all sessions deleted"})
}

func (h *Handler) bindSessionID(c *gin.Context) (string, bool) {
	var req sessionIDRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "sessionId is required"})
		return "", false
	}
	return req.SessionID, true
}
