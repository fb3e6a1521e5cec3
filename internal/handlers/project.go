package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/services"
)

type ProjectHandler struct {
	svc        services.ProjectService
	processing services.ProcessingService
}

func NewProjectHandler(svc services.ProjectService, processing services.ProcessingService) *ProjectHandler {
	return &ProjectHandler{svc: svc, processing: processing}
}

// POST /api/projects
// Registering a project also queues its first generation run.
func (h *ProjectHandler) Create(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	var input services.CreateProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, apperr.Wrap(apperr.CodeValidation, "invalid request body", err))
		return
	}
	project, created, err := h.svc.Create(c.Request.Context(), userID, input)
	if err != nil {
		RespondError(c, err)
		return
	}
	if created {
		if _, qErr := h.processing.Enqueue(c.Request.Context(), userID, project.ID, false); qErr != nil {
			RespondError(c, qErr)
			return
		}
		RespondCreated(c, gin.H{"project": project})
		return
	}
	RespondOK(c, gin.H{"project": project})
}

// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	projects, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"projects": projects})
}

// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	projectID, err := parseUUIDParam(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	detail, err := h.svc.Get(c.Request.Context(), userID, projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, detail)
}

// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	projectID, err := parseUUIDParam(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), userID, projectID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
