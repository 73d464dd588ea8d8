package session

import (
	"github.com/gin-gonic/gin"

	"github.com/cosmicconnect/backend/pkg/response"
)

// View is the body of GET /session.
type View struct {
	*Session
	Dashboard string `json:"dashboard"`
}

// Current handles GET /session.
func Current(c *gin.Context) {
	s, ok := From(c)
	if !ok {
		response.UnauthorizedRedirect(c, ErrNotAuthorized.Error(), EntryPath)
		return
	}
	response.OK(c, View{Session: s, Dashboard: s.Dashboard()})
}
