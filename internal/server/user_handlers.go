package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itc-hub/sitecontrol/internal/authz"
	"github.com/itc-hub/sitecontrol/internal/models"
	"github.com/itc-hub/sitecontrol/internal/syslog"
	"github.com/itc-hub/sitecontrol/internal/user"
)

type userCreateRequest struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Role     string `json:"role" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userUpdateRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

// userPayload strips the password hash from API responses.
func userPayload(u *models.User) gin.H {
	return gin.H{
		"id": u.ID, "email": u.Email, "full_name": u.FullName,
		"phone": u.Phone, "role": u.Role, "is_active": u.IsActive,
		"date_joined": u.DateJoined,
	}
}

func handleUserCreate(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req userCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		u, err := user.Create(d.db, actor(c), user.CreateOpts{
			Email:    req.Email,
			FullName: req.FullName,
			Phone:    req.Phone,
			Role:     models.Role(req.Role),
			Password: req.Password,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, userPayload(u))
	}
}

func handleUserList(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		rows, total, err := user.List(d.db, actor(c), user.ListFilters{
			Role:       models.Role(c.Query("role")),
			Query:      c.Query("q"),
			ActiveOnly: c.Query("active") == "true",
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			fail(c, err)
			return
		}
		items := make([]gin.H, 0, len(rows))
		for i := range rows {
			items = append(items, userPayload(&rows[i]))
		}
		c.JSON(http.StatusOK, listPayload(items, total, limit, offset))
	}
}

func handleUserGet(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := user.Get(d.db, actor(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, userPayload(u))
	}
}

func handleUserUpdate(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req userUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		u, err := user.Update(d.db, actor(c), c.Param("id"), user.UpdateOpts{
			FullName: req.FullName,
			Phone:    req.Phone,
			Password: req.Password,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, userPayload(u))
	}
}

func handleUserSetActive(d deps, active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := user.SetActive(d.db, actor(c), d.auth, c.Param("id"), active)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, userPayload(u))
	}
}

func handleLogList(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authz.Authorize(authz.OpLogList, actor(c), authz.Resource{}); err != nil {
			fail(c, err)
			return
		}
		limit, offset := pagination(c)
		rows, total, err := syslog.List(d.db, c.Query("level"), c.Query("category"), limit, offset)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, listPayload(rows, total, limit, offset))
	}
}
