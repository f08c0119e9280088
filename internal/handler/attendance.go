package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartattendance/internal/attendance"
	"smartattendance/internal/model"
)

type markRequest struct {
	IndexNumber string `json:"indexNumber" binding:"required,notblank"`
	Capture     string `json:"capture" binding:"required"`
}

// MarkAttendance runs the whole marking workflow for one index number in a single request.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	rec, err := h.Attendance.MarkByIndex(c.Request.Context(), req.IndexNumber, req.Capture)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// ListAttendance filters the ledger by student_id, date, from and to query parameters.
func (h *Handler) ListAttendance(c *gin.Context) {
	filter, err := attendanceFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	records, err := h.Attendance.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func attendanceFilter(c *gin.Context) (model.AttendanceFilter, error) {
	f := model.AttendanceFilter{
		StudentID: c.Query("student_id"),
		Date:      c.Query("date"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}
	for name, v := range map[string]string{"date": f.Date, "from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, v); err != nil {
			return model.AttendanceFilter{}, model.Invalid(name, "must be YYYY-MM-DD")
		}
	}
	return f, nil
}

type markingView struct {
	ID string `json:"id"`
	attendance.State
}

func (h *Handler) marking(c *gin.Context) (*attendance.Marking, bool) {
	m, err := h.Sessions.Get(c.Param("id"), session(c).User.ID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return m, true
}

func (h *Handler) StartMarking(c *gin.Context) {
	id, m := h.Sessions.Create(session(c).User.ID)
	c.JSON(http.StatusCreated, markingView{ID: id, State: m.State()})
}

func (h *Handler) GetMarking(c *gin.Context) {
	m, ok := h.marking(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, markingView{ID: c.Param("id"), State: m.State()})
}

func (h *Handler) SubmitIndex(c *gin.Context) {
	var req struct {
		IndexNumber string `json:"indexNumber" binding:"required,notblank"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, ok := h.marking(c)
	if !ok {
		return
	}
	if _, err := m.SubmitIndex(c.Request.Context(), req.IndexNumber); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, markingView{ID: c.Param("id"), State: m.State()})
}

// VerifyMarking blocks for the verification delay; the client aborts it with reset or delete.
func (h *Handler) VerifyMarking(c *gin.Context) {
	var req struct {
		Capture string `json:"capture" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, ok := h.marking(c)
	if !ok {
		return
	}
	if _, err := m.Verify(c.Request.Context(), req.Capture); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, markingView{ID: c.Param("id"), State: m.State()})
}

func (h *Handler) ResetMarking(c *gin.Context) {
	m, ok := h.marking(c)
	if !ok {
		return
	}
	m.Reset()
	c.JSON(http.StatusOK, markingView{ID: c.Param("id"), State: m.State()})
}

func (h *Handler) CloseMarking(c *gin.Context) {
	if err := h.Sessions.Close(c.Param("id"), session(c).User.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
