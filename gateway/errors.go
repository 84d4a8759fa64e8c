package gateway

import (
	"net/http"

	"github.com/example/tablepos/pkg/errs"
	"github.com/gin-gonic/gin"
)

var kindStatus = map[errs.Kind]int{
	errs.KindStock:           http.StatusConflict,
	errs.KindConflict:        http.StatusConflict,
	errs.KindInvalid:         http.StatusBadRequest,
	errs.KindNotFound:        http.StatusNotFound,
	errs.KindMissingIdentity: http.StatusUnauthorized,
	errs.KindFetch:           http.StatusBadGateway,
	errs.KindWrite:           http.StatusBadGateway,
	errs.KindUpload:          http.StatusBadGateway,
}

func statusFor(err error) int {
	if code, ok := kindStatus[errs.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": errs.KindOf(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
