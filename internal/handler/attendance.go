package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartattend/internal/attendance"
	"smartattend/internal/auth"
)

type markRequest struct {
	QRToken   string  `json:"qr_token" binding:"required"`
	DeviceID  string  `json:"device_id" binding:"required"`
	SelfieRef *string `json:"selfie_ref"`
	Class     string  `json:"class"`
}

// Mark invokes the verification workflow for the caller.
func (h *Handler) Mark(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "Unauthorized"})
		return
	}
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "ValidationError"})
		return
	}
	rec, err := h.marks.Mark(c.Request.Context(), attendance.MarkInput{
		UserID:    claims.Subject,
		QRToken:   req.QRToken,
		DeviceID:  req.DeviceID,
		SelfieRef: req.SelfieRef,
		ClassHint: req.Class,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.notify != nil {
		if err := h.notify.Publish(c.Request.Context(), "attendance.marked", []byte(rec.ID)); err != nil {
			h.log.Warn("notification publish failed", zap.String("record_id", rec.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{"attendance": rec})
}

// ListAttendance returns records matching query filters. Teacher/admin only.
func (h *Handler) ListAttendance(c *gin.Context) {
	f := attendance.Filter{
		Class:  c.Query("class"),
		UserID: c.Query("user_id"),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339", "kind": "ValidationError"})
			return
		}
		f.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339", "kind": "ValidationError"})
			return
		}
		f.To = t
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.ledger.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"attendance": records})
}

// TodayAttendance returns today's records: all of them for teacher/admin,
// only the caller's own for students.
func (h *Handler) TodayAttendance(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "Unauthorized"})
		return
	}
	now := timeNow()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	f := attendance.Filter{From: start, To: start.AddDate(0, 0, 1)}
	if !isElevated(claims) {
		f.UserID = claims.Subject
	}
	records, err := h.ledger.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"attendance": records})
}

// UserAttendance returns one user's history; students may only read their own.
func (h *Handler) UserAttendance(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "Unauthorized"})
		return
	}
	userID := c.Param("userId")
	if !isElevated(claims) && claims.Subject != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role", "kind": "Unauthorized"})
		return
	}
	f := attendance.Filter{UserID: userID}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	records, err := h.ledger.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"attendance": records})
}

// GetAttendance fetches one record; students may only read their own.
func (h *Handler) GetAttendance(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "Unauthorized"})
		return
	}
	rec, err := h.ledger.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !isElevated(claims) && rec.UserID != claims.Subject {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role", "kind": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rec})
}

type updateAttendanceRequest struct {
	Status   *string `json:"status" binding:"omitempty,oneof=present absent late"`
	Remarks  *string `json:"remarks"`
	Verified *bool   `json:"verified"`
}

// UpdateAttendance applies an explicit patch. Teacher/admin only; user and
// consumed token stay immutable.
func (h *Handler) UpdateAttendance(c *gin.Context) {
	var req updateAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "ValidationError"})
		return
	}
	rec, err := h.ledger.Update(c.Request.Context(), c.Param("id"), attendance.Patch{
		Status:   req.Status,
		Remarks:  req.Remarks,
		Verified: req.Verified,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rec})
}

// DeleteAttendance removes a record. Teacher/admin only.
func (h *Handler) DeleteAttendance(c *gin.Context) {
	if err := h.ledger.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
