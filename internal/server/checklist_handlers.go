package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/itc-hub/sitecontrol/internal/checklist"
)

type checklistSubmitRequest struct {
	ObjectID        uint   `json:"object_id" binding:"required"`
	Data            string `json:"data"`
	PDFURL          string `json:"pdf_url"`
	PhotosFolderURL string `json:"photos_folder_url"`
}

type checklistReviewRequest struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
}

func handleChecklistSubmit(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checklistSubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		cl, err := checklist.Submit(d.db, actor(c), checklist.SubmitOpts{
			ObjectID:        req.ObjectID,
			Data:            req.Data,
			PDFURL:          req.PDFURL,
			PhotosFolderURL: req.PhotosFolderURL,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, cl)
	}
}

func handleChecklistList(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		filters := checklist.ListFilters{
			Status: c.Query("status"),
			Limit:  limit,
			Offset: offset,
		}
		if v := c.Query("object_id"); v != "" {
			id, _ := strconv.ParseUint(v, 10, 32)
			filters.ObjectID = uint(id)
		}
		rows, total, err := checklist.List(d.db, actor(c), filters)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, listPayload(rows, total, limit, offset))
	}
}

func handleChecklistGet(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		cl, err := checklist.Get(d.db, actor(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cl)
	}
}

func handleChecklistReview(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req checklistReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		cl, err := checklist.Review(d.db, actor(c), id, checklist.ReviewOpts{
			Approved: req.Approved,
			Comment:  req.Comment,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cl)
	}
}
