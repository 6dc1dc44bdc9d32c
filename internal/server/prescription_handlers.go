package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/itc-hub/sitecontrol/internal/prescription"
)

type prescriptionCreateRequest struct {
	ObjectID                uint   `json:"object_id" binding:"required"`
	Title                   string `json:"title" binding:"required"`
	Description             string `json:"description"`
	RequiresStop            bool   `json:"requires_stop"`
	RequiresPersonalRecheck bool   `json:"requires_personal_recheck"`
	Attachments             string `json:"attachments"`
}

type prescriptionFixRequest struct {
	Comment     string `json:"comment"`
	Attachments string `json:"attachments"`
}

type prescriptionVerifyRequest struct {
	Accepted bool   `json:"accepted"`
	Comment  string `json:"comment"`
}

func handlePrescriptionCreate(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req prescriptionCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		pres, err := prescription.Create(d.db, actor(c), prescription.CreateOpts{
			ObjectID:                req.ObjectID,
			Title:                   req.Title,
			Description:             req.Description,
			RequiresStop:            req.RequiresStop,
			RequiresPersonalRecheck: req.RequiresPersonalRecheck,
			Attachments:             req.Attachments,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, pres)
	}
}

func handlePrescriptionList(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		filters := prescription.ListFilters{
			Status:   c.Query("status"),
			OnlyOpen: c.Query("open") == "true",
			Limit:    limit,
			Offset:   offset,
		}
		if v := c.Query("object_id"); v != "" {
			id, _ := strconv.ParseUint(v, 10, 32)
			filters.ObjectID = uint(id)
		}
		if v := c.Query("requires_stop"); v != "" {
			b := v == "true"
			filters.RequiresStop = &b
		}
		rows, total, err := prescription.List(d.db, actor(c), filters)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, listPayload(rows, total, limit, offset))
	}
}

func handlePrescriptionGet(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		pres, err := prescription.Get(d.db, actor(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, pres)
	}
}

func handlePrescriptionFix(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req prescriptionFixRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		pres, err := prescription.Fix(d.db, actor(c), id, prescription.FixOpts{
			Comment:     req.Comment,
			Attachments: req.Attachments,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, pres)
	}
}

func handlePrescriptionVerify(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req prescriptionVerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		pres, err := prescription.Verify(d.db, actor(c), id, prescription.VerifyOpts{
			Accepted: req.Accepted,
			Comment:  req.Comment,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, pres)
	}
}
