package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/activation"
	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
	"github.com/itc-hub/sitecontrol/internal/object"
)

type objectCreateRequest struct {
	Name          string  `json:"name" binding:"required"`
	Address       string  `json:"address"`
	SSKID         *string `json:"ssk_id"`
	AutoAssignSSK bool    `json:"auto_assign_ssk"`
}

type objectAssignRequest struct {
	SSKID     *string `json:"ssk_id"`
	ForemanID *string `json:"foreman_id"`
	IKOID     *string `json:"iko_id"`
}

type activationRequestBody struct {
	Checklist    string `json:"checklist"`
	ChecklistPDF string `json:"checklist_pdf"`
}

type activationCheckBody struct {
	HasViolations  bool   `json:"has_violations"`
	Checklist      string `json:"checklist"`
	ChecklistPDF   string `json:"checklist_pdf"`
	RejectedReason string `json:"rejected_reason"`
}

func handleObjectCreate(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req objectCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		obj, err := object.Create(d.db, actor(c), object.CreateOpts{
			Name:          req.Name,
			Address:       req.Address,
			SSKID:         req.SSKID,
			AutoAssignSSK: req.AutoAssignSSK,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, obj)
	}
}

func handleObjectList(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		rows, total, err := object.List(d.db, actor(c), object.ListFilters{
			Status: c.Query("status"),
			Query:  c.Query("q"),
			Mine:   c.Query("mine") == "true",
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, listPayload(rows, total, limit, offset))
	}
}

func handleObjectGet(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		obj, err := loadVisibleObject(d, c, id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, obj)
	}
}

func handleObjectAssign(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req objectAssignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		obj, err := object.Assign(d.db, actor(c), id, object.AssignOpts{
			SSKID:     req.SSKID,
			ForemanID: req.ForemanID,
			IKOID:     req.IKOID,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, obj)
	}
}

func handleObjectAudit(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		rows, err := object.ListAudit(d.db, actor(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

func handleObjectSuspend(d deps) gin.HandlerFunc {
	return transition(d, object.Suspend)
}

func handleObjectResume(d deps) gin.HandlerFunc {
	return transition(d, object.Resume)
}

func handleObjectCompleteSSK(d deps) gin.HandlerFunc {
	return transition(d, object.CompleteBySSK)
}

func handleObjectComplete(d deps) gin.HandlerFunc {
	return transition(d, object.Complete)
}

// transition wraps the four status-change operations, which share a shape.
func transition(d deps, op func(conn *gorm.DB, actor *models.User, id uint) (*models.ConstructionObject, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		obj, err := op(d.db, actor(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, obj)
	}
}

func handleActivationRequest(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req activationRequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		act, err := activation.Request(d.db, actor(c), id, activation.RequestOpts{
			SSKChecklist:    req.Checklist,
			SSKChecklistPDF: req.ChecklistPDF,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, act)
	}
}

func handleActivationGet(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if _, err := loadVisibleObject(d, c, id); err != nil {
			fail(c, err)
			return
		}
		act, err := activation.Latest(d.db, id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, act)
	}
}

func handleActivationCheck(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req activationCheckBody
		if err := c.ShouldBindJSON(&req); err != nil {
			failBind(c, err)
			return
		}
		act, err := activation.IkoCheck(d.db, actor(c), id, activation.CheckOpts{
			HasViolations:   req.HasViolations,
			IKOChecklist:    req.Checklist,
			IKOChecklistPDF: req.ChecklistPDF,
			RejectedReason:  req.RejectedReason,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, act)
	}
}

func handleObjectFiles(d deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if _, err := loadVisibleObject(d, c, id); err != nil {
			fail(c, err)
			return
		}
		tree, err := d.storage.BrowseObject(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, tree)
	}
}

// loadVisibleObject loads an object and enforces per-role visibility: IKO
// and foremen only see objects they hold.
func loadVisibleObject(d deps, c *gin.Context, id uint) (*models.ConstructionObject, error) {
	obj, err := object.Get(d.db, id)
	if err != nil {
		return nil, err
	}
	u := actor(c)
	switch u.Role {
	case models.RoleAdmin, models.RoleSSK:
		return obj, nil
	case models.RoleIKO:
		if obj.IKOID != nil && *obj.IKOID == u.ID {
			return obj, nil
		}
	case models.RoleForeman:
		if obj.ForemanID != nil && *obj.ForemanID == u.ID {
			return obj, nil
		}
	}
	return nil, domain.ErrNotFound
}
