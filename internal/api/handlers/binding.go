package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// bindOptionalJSON binds a JSON body that callers may leave out. An absent or
// empty body leaves obj untouched. Chunked bodies have no ContentLength, so
// the body itself is read to find out.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
