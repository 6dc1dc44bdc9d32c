package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/itc-hub/sitecontrol/internal/delivery"
)

type deliveryScheduleRequest struct {
	ObjectID    uint   `json:"object_id" binding:"required"`
	PlannedDate string `json:"planned_date"` // YYYY-MM-DD
	Notes       string `json:"notes"`
}

type deliveryReceiveRequest struct {
	InvoicePDFURL string `json:"invoice_pdf_url"`
	InvoiceData   string `json:"invoice_data"`
}

type deliveryDecideRequest struct {
	Decision string `json:"decision" binding:"required"`
	LabItems string `json:"lab_items"`
}

type deliveryLabResultRequest struct {
	Passed bool `json:"passed"`
}

func handleDeliverySchedule(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req deliveryScheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		opts := delivery.ScheduleOpts{ObjectID: req.ObjectID, Notes: req.Notes}
		if req.PlannedDate != "" {
			t, err := time.Parse("2006-01-02", req.PlannedDate)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "planned_date must be YYYY-MM-DD"})
				return
			}
			opts.PlannedDate = &t
		}
		del, err := delivery.Schedule(d.db, actor(c), opts)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, del)
	}
}

func handleDeliveryList(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		filters := delivery.ListFilters{
			Status: c.Query("status"),
			Limit:  limit,
			Offset: offset,
		}
		if v := c.Query("object_id"); v != "" {
			id, _ := strconv.ParseUint(v, 10, 32)
			filters.ObjectID = uint(id)
		}
		rows, total, err := delivery.List(d.db, actor(c), filters)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, listPayload(rows, total, limit, offset))
	}
}

func handleDeliveryGet(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		del, err := delivery.Get(d.db, actor(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, del)
	}
}

func handleDeliveryReceive(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req deliveryReceiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		del, err := delivery.Receive(d.db, actor(c), id, delivery.ReceiveOpts{
			InvoicePDFURL: req.InvoicePDFURL,
			InvoiceData:   req.InvoiceData,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, del)
	}
}

func handleDeliveryDecide(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req deliveryDecideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		del, err := delivery.Decide(d.db, actor(c), id, delivery.DecideOpts{
			Decision: delivery.Decision(req.Decision),
			LabItems: req.LabItems,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, del)
	}
}

func handleDeliveryLabResult(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req deliveryLabResultRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		del, err := delivery.CompleteLab(d.db, actor(c), id, req.Passed)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, del)
	}
}
