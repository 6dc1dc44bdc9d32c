package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all API routes. Everything under /api/v1 except
// login and refresh requires a bearer access token.
func registerRoutes(router *gin.Engine, d deps) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	v1.POST("/auth/login", handleLogin(d))
	v1.POST("/auth/refresh", handleRefresh(d))

	authed := v1.Group("")
	authed.Use(requireAuth(d))

	authed.POST("/auth/logout", handleLogout(d))
	authed.GET("/auth/me", handleMe())

	authed.POST("/objects", handleObjectCreate(d))
	authed.GET("/objects", handleObjectList(d))
	authed.GET("/objects/:id", handleObjectGet(d))
	authed.PATCH("/objects/:id/roles", handleObjectAssign(d))
	authed.GET("/objects/:id/audit", handleObjectAudit(d))
	authed.POST("/objects/:id/suspend", handleObjectSuspend(d))
	authed.POST("/objects/:id/resume", handleObjectResume(d))
	authed.POST("/objects/:id/complete-ssk", handleObjectCompleteSSK(d))
	authed.POST("/objects/:id/complete", handleObjectComplete(d))

	authed.POST("/objects/:id/activation", handleActivationRequest(d))
	authed.GET("/objects/:id/activation", handleActivationGet(d))
	authed.POST("/objects/:id/activation/check", handleActivationCheck(d))

	authed.POST("/prescriptions", handlePrescriptionCreate(d))
	authed.GET("/prescriptions", handlePrescriptionList(d))
	authed.GET("/prescriptions/:id", handlePrescriptionGet(d))
	authed.POST("/prescriptions/:id/fix", handlePrescriptionFix(d))
	authed.POST("/prescriptions/:id/verify", handlePrescriptionVerify(d))

	authed.POST("/deliveries", handleDeliverySchedule(d))
	authed.GET("/deliveries", handleDeliveryList(d))
	authed.GET("/deliveries/:id", handleDeliveryGet(d))
	authed.POST("/deliveries/:id/receive", handleDeliveryReceive(d))
	authed.POST("/deliveries/:id/decide", handleDeliveryDecide(d))
	authed.POST("/deliveries/:id/lab-result", handleDeliveryLabResult(d))

	authed.POST("/workplans", handleWorkPlanCreate(d))
	authed.GET("/workplans/:id", handleWorkPlanGet(d))
	authed.PUT("/workplans/:id/items", handleWorkPlanReplaceItems(d))
	authed.POST("/workplans/:id/versions", handleWorkPlanSnapshot(d))
	authed.GET("/workplans/:id/versions", handleWorkPlanVersions(d))
	authed.GET("/objects/:id/workplans", handleWorkPlanListByObject(d))

	authed.POST("/checklists", handleChecklistSubmit(d))
	authed.GET("/checklists", handleChecklistList(d))
	authed.GET("/checklists/:id", handleChecklistGet(d))
	authed.POST("/checklists/:id/review", handleChecklistReview(d))

	authed.POST("/users", handleUserCreate(d))
	authed.GET("/users", handleUserList(d))
	authed.GET("/users/:id", handleUserGet(d))
	authed.PATCH("/users/:id", handleUserUpdate(d))
	authed.POST("/users/:id/activate", handleUserSetActive(d, true))
	authed.POST("/users/:id/deactivate", handleUserSetActive(d, false))

	authed.GET("/logs", handleLogList(d))

	if d.storage != nil {
		authed.GET("/objects/:id/files", handleObjectFiles(d))
	}
}
