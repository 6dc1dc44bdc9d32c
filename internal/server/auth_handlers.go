package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itc-hub/sitecontrol/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func tokensPayload(pair *auth.TokenPair) gin.H {
	return gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	}
}

func handleLogin(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		pair, u, err := d.auth.Login(req.Email, req.Password, auth.LoginMeta{
			UserAgent: c.GetHeader("User-Agent"),
			IP:        c.ClientIP(),
		})
		if err != nil {
			fail(c, err)
			return
		}
		payload := tokensPayload(pair)
		payload["user"] = gin.H{"id": u.ID, "email": u.Email, "full_name": u.FullName, "role": u.Role}
		c.JSON(http.StatusOK, payload)
	}
}

func handleRefresh(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		pair, err := d.auth.Refresh(req.RefreshToken, auth.LoginMeta{
			UserAgent: c.GetHeader("User-Agent"),
			IP:        c.ClientIP(),
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, tokensPayload(pair))
	}
}

func handleLogout(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		if err := d.auth.Logout(req.RefreshToken); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := actor(c)
		c.JSON(http.StatusOK, gin.H{
			"id": u.ID, "email": u.Email, "full_name": u.FullName,
			"phone": u.Phone, "role": u.Role, "is_active": u.IsActive,
		})
	}
}
