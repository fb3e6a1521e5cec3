package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/repos"
)

type UserHandler struct {
	userRepo repos.UserRepo
}

func NewUserHandler(userRepo repos.UserRepo) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// GET /api/user
func (h *UserHandler) Me(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	user, err := h.userRepo.GetByID(c.Request.Context(), nil, userID)
	if err != nil {
		RespondError(c, apperr.Wrap(apperr.CodePersistence, "failed to load user", err))
		return
	}
	if user == nil {
		RespondError(c, apperr.New(apperr.CodeNotFound, "user not found"))
		return
	}
	RespondOK(c, gin.H{"user": user})
}
