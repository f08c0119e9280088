package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartattendance/internal/export"
	"smartattendance/internal/model"
)

const maxRestoreBytes = 32 << 20

func (h *Handler) Stats(c *gin.Context) {
	rep, err := h.Reports.Build(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) DailyStats(c *gin.Context) {
	rep, err := h.Reports.Build(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily": rep.Daily})
}

func (h *Handler) StudentStats(c *gin.Context) {
	rep, err := h.Reports.Build(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": rep.Students, "totalInstructionalDays": rep.TotalDays})
}

func (h *Handler) FlaggedStats(c *gin.Context) {
	rep, err := h.Reports.Build(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": rep.Flagged, "threshold": rep.Threshold})
}

// ExportStudents writes the roster as CSV, narrowed by ?q= like the student list.
func (h *Handler) ExportStudents(c *gin.Context) {
	students, err := h.Registry.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteStudentsCSV(&buf, students); err != nil {
		respondError(c, err)
		return
	}
	h.download(c, "students", "csv", "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) ExportAttendance(c *gin.Context) {
	filter, err := attendanceFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := h.Export.AttendanceCSV(c.Request.Context(), &buf, filter); err != nil {
		respondError(c, err)
		return
	}
	h.download(c, "attendance", "csv", "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) Backup(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.Export.Backup(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.BackupFilename(h.Now())))
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

// Restore accepts the backup document as the raw body or as a multipart "file" field.
func (h *Handler) Restore(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRestoreBytes)

	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			respondError(c, model.Invalid("file", "is required"))
			return
		}
		defer file.Close()
		src = file
	}

	b, err := h.Export.Restore(c.Request.Context(), src)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"students":          len(b.Students),
		"attendanceRecords": len(b.AttendanceRecords),
		"timestamp":         b.Timestamp,
	})
}

func (h *Handler) download(c *gin.Context, name, ext, contentType string, data []byte) {
	filename := fmt.Sprintf("%s_%s.%s", name, h.Now().Format(model.DateLayout), ext)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}
