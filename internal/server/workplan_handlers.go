package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/itc-hub/sitecontrol/internal/workplan"
)

type workItemBody struct {
	Name        string  `json:"name" binding:"required"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	StartDate   string  `json:"start_date"` // YYYY-MM-DD
	EndDate     string  `json:"end_date"`
	DocumentURL string  `json:"document_url"`
}

type workPlanCreateRequest struct {
	ObjectID uint           `json:"object_id" binding:"required"`
	Title    string         `json:"title" binding:"required"`
	Items    []workItemBody `json:"items"`
}

type workPlanItemsRequest struct {
	Items []workItemBody `json:"items" binding:"required"`
}

type workPlanSnapshotRequest struct {
	DocURL string `json:"doc_url" binding:"required"`
}

func itemOpts(items []workItemBody) ([]workplan.ItemOpts, error) {
	out := make([]workplan.ItemOpts, 0, len(items))
	for _, it := range items {
		opt := workplan.ItemOpts{
			Name:        it.Name,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			DocumentURL: it.DocumentURL,
		}
		var err error
		if it.StartDate != "" {
			if opt.StartDate, err = time.Parse("2006-01-02", it.StartDate); err != nil {
				return nil, err
			}
		}
		if it.EndDate != "" {
			if opt.EndDate, err = time.Parse("2006-01-02", it.EndDate); err != nil {
				return nil, err
			}
		}
		out = append(out, opt)
	}
	return out, nil
}

func handleWorkPlanCreate(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req workPlanCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		items, err := itemOpts(req.Items)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "item dates must be YYYY-MM-DD"})
			return
		}
		plan, err := workplan.Create(d.db, actor(c), workplan.CreateOpts{
			ObjectID: req.ObjectID,
			Title:    req.Title,
			Items:    items,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, plan)
	}
}

func handleWorkPlanGet(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		plan, err := workplan.Get(d.db, actor(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func handleWorkPlanReplaceItems(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req workPlanItemsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		items, err := itemOpts(req.Items)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "item dates must be YYYY-MM-DD"})
			return
		}
		plan, err := workplan.ReplaceItems(d.db, actor(c), id, items)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func handleWorkPlanSnapshot(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req workPlanSnapshotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		ver, err := workplan.Snapshot(d.db, actor(c), id, req.DocURL)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, ver)
	}
}

func handleWorkPlanVersions(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		vers, err := workplan.Versions(d.db, actor(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": vers})
	}
}

func handleWorkPlanListByObject(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		plans, err := workplan.ListByObject(d.db, actor(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": plans})
	}
}
