package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattend/internal/auth"
	"smartattend/internal/user"
)

// ListUsers returns all accounts. Admin only.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if users == nil {
		users = []user.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser fetches one account: self or admin.
func (h *Handler) GetUser(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "Unauthorized"})
		return
	}
	id := c.Param("id")
	if claims.Role != user.RoleAdmin && claims.Subject != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role", "kind": "Unauthorized"})
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

type updateUserRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Password    *string `json:"password" binding:"omitempty,min=8"`
	Role        *string `json:"role" binding:"omitempty,oneof=student teacher admin"`
	Class       *string `json:"class"`
	Phone       *string `json:"phone"`
	ParentEmail *string `json:"parent_email" binding:"omitempty,email"`
	SelfieRef   *string `json:"selfie_ref"`
}

// UpdateUser patches an account. Self-service covers profile fields; role
// changes are admin only.
func (h *Handler) UpdateUser(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "Unauthorized"})
		return
	}
	id := c.Param("id")
	if claims.Role != user.RoleAdmin && claims.Subject != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role", "kind": "Unauthorized"})
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "ValidationError"})
		return
	}
	if req.Role != nil && claims.Role != user.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "role changes require admin", "kind": "Unauthorized"})
		return
	}
	u, err := h.users.Update(c.Request.Context(), id, user.Patch{
		Name:        req.Name,
		Email:       req.Email,
		Role:        req.Role,
		Class:       req.Class,
		Phone:       req.Phone,
		ParentEmail: req.ParentEmail,
		SelfieRef:   req.SelfieRef,
	}, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// DeleteUser soft-deactivates an account. Admin only.
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.users.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deactivated": true})
}
