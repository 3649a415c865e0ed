package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattend/internal/auth"
	"smartattend/internal/user"
)

type registerRequest struct {
	Name        string  `json:"name" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8"`
	Role        string  `json:"role" binding:"omitempty,oneof=student teacher admin"`
	RollNumber  string  `json:"roll_number" binding:"required"`
	Class       string  `json:"class"`
	Phone       *string `json:"phone"`
	ParentEmail *string `json:"parent_email" binding:"omitempty,email"`
}

// Register creates an account.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "ValidationError"})
		return
	}
	u, err := h.users.Register(c.Request.Context(), user.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		RollNumber:  req.RollNumber,
		Class:       req.Class,
		Phone:       req.Phone,
		ParentEmail: req.ParentEmail,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "ValidationError"})
		return
	}
	u, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	token, err := auth.Issue(u.ID, u.Role, h.jwtIssuer, h.jwtKey, h.accessTTL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token.Value,
		"expires_at": token.ExpiresAt.Unix(),
		"user":       u,
	})
}

// Profile returns the caller's account.
func (h *Handler) Profile(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "Unauthorized"})
		return
	}
	u, err := h.users.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

type registerDeviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Name     string `json:"device_name"`
}

// RegisterDevice binds a device identifier to the caller.
func (h *Handler) RegisterDevice(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "Unauthorized"})
		return
	}
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "ValidationError"})
		return
	}
	var ip *string
	if addr := c.ClientIP(); addr != "" {
		ip = &addr
	}
	b, err := h.devices.Register(c.Request.Context(), claims.Subject, req.DeviceID, req.Name, ip)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"device": b})
}

type issueQRRequest struct {
	Class string `json:"class" binding:"required"`
}

// IssueQR opens a class session and returns the opaque token. Rendering the
// token into an image is the client's concern.
func (h *Handler) IssueQR(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "Unauthorized"})
		return
	}
	var req issueQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "ValidationError"})
		return
	}
	// Teachers sign sessions only for their own class; admins are not tied
	// to one.
	if claims.Role != user.RoleAdmin {
		caller, err := h.users.Get(c.Request.Context(), claims.Subject)
		if err != nil {
			h.fail(c, err)
			return
		}
		if caller.Class != req.Class {
			c.JSON(http.StatusForbidden, gin.H{"error": "class not assigned to caller", "kind": "Forbidden"})
			return
		}
	}
	token, sess, err := h.qr.Issue(req.Class, claims.Subject, timeNow())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"class":      sess.Class,
		"issued_at":  sess.IssuedAt.Unix(),
		"expires_at": sess.ExpiresAt.Unix(),
	})
}

// isElevated reports whether the caller may act on other users' records.
func isElevated(claims auth.Claims) bool {
	return claims.Role == user.RoleTeacher || claims.Role == user.RoleAdmin
}
