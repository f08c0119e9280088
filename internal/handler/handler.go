package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"smartattendance/internal/attendance"
	"smartattendance/internal/auth"
	"smartattendance/internal/export"
	"smartattendance/internal/model"
	"smartattendance/internal/registry"
	"smartattendance/internal/report"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", validators.NotBlank)
	}
}

// Check is a named dependency probe for /healthz.
type Check struct {
	Name     string
	Required bool
	Probe    func(ctx context.Context) error
}

// Deps are the services the handlers call into.
type Deps struct {
	Directory  *auth.Directory
	Signer     auth.Signer
	Revoker    auth.Revoker
	Registry   *registry.Service
	Attendance *attendance.Service
	Sessions   *attendance.Sessions
	Reports    *report.Service
	Export     *export.Service
	Checks     []Check
	Now        func() time.Time
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{Deps: d}
}

// Healthz reports each dependency; only required ones affect the status code.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	result := gin.H{}
	for _, chk := range h.Checks {
		healthy := chk.Probe(ctx) == nil
		result[chk.Name] = healthy
		if !healthy && chk.Required {
			status = http.StatusServiceUnavailable
		}
	}
	result["status"] = "ok"
	if status != http.StatusOK {
		result["status"] = "degraded"
	}
	c.JSON(status, result)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrStudentNotFound):
		return http.StatusNotFound, "student_not_found"
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, model.ErrDuplicateIndex):
		return http.StatusConflict, "duplicate_index"
	case errors.Is(err, model.ErrAlreadyMarked):
		return http.StatusConflict, "already_marked"
	case errors.Is(err, model.ErrInvalidStep):
		return http.StatusConflict, "invalid_step"
	case errors.Is(err, attendance.ErrAborted):
		return http.StatusConflict, "aborted"
	case errors.Is(err, model.ErrNoFaceData):
		return http.StatusUnprocessableEntity, "no_face_data"
	case errors.Is(err, model.ErrVerificationFailed):
		return http.StatusUnprocessableEntity, "verification_failed"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, model.ErrMalformedBackup):
		return http.StatusBadRequest, "malformed_backup"
	case errors.Is(err, model.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

// respondError writes the {"error","code"} body for err. Server-side failures are
// logged and their details withheld from the client.
func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = model.ErrStorageUnavailable.Error()
	case status >= http.StatusInternalServerError:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	case errors.Is(err, model.ErrVerificationFailed):
		msg = model.ErrVerificationFailed.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

// bindError reports a request body that failed binding or validation.
func bindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation"})
}

func session(c *gin.Context) auth.Session {
	s, _ := auth.SessionFrom(c)
	return s
}
