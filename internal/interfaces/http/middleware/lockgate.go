package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinic/terminal/internal/domain/connectivity"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/interfaces/http/dto"
)

// StateProvider reports the current connectivity state.
type StateProvider interface {
	State() connectivity.State
}

// LockGate rejects mutating requests while the terminal is LOCKED.
// Reads stay available so the operator can still look up patients and
// see the queue; anything that would create new local-only records is
// fenced off until the server answers a probe again.
func LockGate(provider StateProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if provider.State() == connectivity.StateLocked {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				dto.NewErrorResponse(shared.ErrTerminalLocked.Code, shared.ErrTerminalLocked.Message))
			return
		}
		c.Next()
	}
}
