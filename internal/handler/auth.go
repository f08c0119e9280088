package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartattendance/internal/auth"
	"smartattendance/internal/model"
)

type loginRequest struct {
	Username string `json:"username" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	User model.User `json:"user"`
	auth.TokenPair
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	usr, err := h.Directory.Authenticate(req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.issue(c, http.StatusOK, usr)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	claims, err := h.Signer.Parse(req.RefreshToken, auth.TokenRefresh)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token", "code": "unauthenticated"})
		return
	}
	ctx := c.Request.Context()
	revoked, err := h.Revoker.Revoked(ctx, claims.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	usr, known := h.Directory.Lookup(claims.Subject)
	if revoked || !known {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session ended", "code": "unauthenticated"})
		return
	}
	if err := h.Revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		respondError(c, err)
		return
	}
	h.issue(c, http.StatusOK, usr)
}

func (h *Handler) issue(c *gin.Context, status int, usr model.User) {
	pair, err := h.Signer.Issue(usr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, tokenResponse{User: usr, TokenPair: pair})
}

// Logout revokes the access token and, when supplied, the refresh token.
func (h *Handler) Logout(c *gin.Context) {
	s := session(c)
	ctx := c.Request.Context()
	if err := h.Revoker.Revoke(ctx, s.TokenID, s.ExpiresAt); err != nil {
		respondError(c, err)
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if c.Request.ContentLength > 0 && c.ShouldBindJSON(&req) == nil && req.RefreshToken != "" {
		if claims, err := h.Signer.Parse(req.RefreshToken, auth.TokenRefresh); err == nil && claims.Subject == s.User.ID {
			if err := h.Revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
				respondError(c, err)
				return
			}
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	s := session(c)
	c.JSON(http.StatusOK, gin.H{"user": s.User, "expires_at": s.ExpiresAt})
}
