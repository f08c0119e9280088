package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattendance/internal/model"
	"smartattendance/internal/report"
)

type registerRequest struct {
	FullName     string  `json:"fullName" binding:"required,notblank"`
	IndexNumber  string  `json:"indexNumber" binding:"required,notblank"`
	FaceTemplate *string `json:"faceTemplate"`
}

func (h *Handler) RegisterStudent(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	st, err := h.Registry.Register(c.Request.Context(), req.FullName, req.IndexNumber, req.FaceTemplate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// ListStudents returns the registry in registration order, optionally filtered by ?q=.
func (h *Handler) ListStudents(c *gin.Context) {
	ctx := c.Request.Context()
	students, err := h.Registry.Search(ctx, c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	records, err := h.Attendance.List(ctx, model.AttendanceFilter{})
	if err != nil {
		respondError(c, err)
		return
	}
	all := report.AttendanceCounts(records)
	counts := make(map[string]int, len(students))
	for _, st := range students {
		counts[st.ID] = all[st.ID]
	}
	c.JSON(http.StatusOK, gin.H{"students": students, "count": len(students), "attendanceCounts": counts})
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.Registry.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if st == nil {
		respondError(c, model.ErrStudentNotFound)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	var patch model.StudentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}
	st, err := h.Registry.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	if st == nil {
		respondError(c, model.ErrStudentNotFound)
		return
	}
	c.JSON(http.StatusOK, st)
}

// DeleteStudent removes the profile; the student's attendance history stays in the ledger.
func (h *Handler) DeleteStudent(c *gin.Context) {
	removed, err := h.Registry.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !removed {
		respondError(c, model.ErrStudentNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// StudentAttendance lists one student's records. The summary is omitted once the
// profile has been deleted.
func (h *Handler) StudentAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	records, err := h.Attendance.ForStudent(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"records": records, "count": len(records)}

	sum, flagged, err := h.Reports.Student(ctx, id)
	switch {
	case err == nil:
		resp["summary"] = sum
		resp["flagged"] = flagged
	case errors.Is(err, model.ErrStudentNotFound) && len(records) > 0:
		resp["summary"] = nil
	default:
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
