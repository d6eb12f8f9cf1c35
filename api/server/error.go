package server

import (
	"github.com/gin-gonic/gin"

	"github.com/photon-storage/go-common/log"

	"github.com/photon-storage/bounty-hub/api/service"
	"github.com/photon-storage/bounty-hub/errs"
)

type errResponse struct {
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Retryable bool   `json:"retryable,omitempty"`
}

// handleError translates handler errors into the response envelope.
// Retryable failures are flagged so clients can resubmit the same
// request safely.
func handleError() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, code := service.StatusCode(err)
		if status >= 500 {
			log.Error("request failed",
				"path", c.Request.URL.Path,
				"error", err,
			)
		}

		c.JSON(status, &errResponse{
			Code:      code,
			Msg:       err.Error(),
			Retryable: errs.IsRetryable(err),
		})
	}
}
