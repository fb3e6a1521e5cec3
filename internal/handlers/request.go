package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/requestdata"
)

// currentUserID pulls the authenticated user from the request context. The
// auth middleware guarantees it is present on protected routes.
func currentUserID(c *gin.Context) (uuid.UUID, error) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apperr.New(apperr.CodeUnauthorized, "missing authenticated user")
	}
	return rd.UserID, nil
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Newf(apperr.CodeValidation, "invalid %s", name)
	}
	return id, nil
}
