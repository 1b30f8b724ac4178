package headerextractors

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jakehl/goid"
	"github.com/sirupsen/logrus"

	"github.com/veridia/estca/pkg/helpers"
)

func updateContextWithRequestID(ctx *gin.Context, headers http.Header) {
	reqID := headers.Get("x-request-id")
	if reqID == "" {
		reqID = goid.NewV4UUID().String()
	}

	ctx.Set(helpers.CtxRequestID, reqID)
	reqCtx := context.WithValue(ctx.Request.Context(), helpers.CtxRequestID, reqID)
	ctx.Request = ctx.Request.WithContext(reqCtx)
}

func updateContextWithSource(ctx *gin.Context, headers http.Header) {
	sourceHeader := headers.Get("x-request-source")
	if sourceHeader == "" {
		return
	}

	ctx.Set(helpers.CtxSource, sourceHeader)
	reqCtx := context.WithValue(ctx.Request.Context(), helpers.CtxSource, sourceHeader)
	ctx.Request = ctx.Request.WithContext(reqCtx)
}

func RequestMetadataToContextMiddleware(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		updateContextWithRequestID(c, c.Request.Header)
		updateContextWithSource(c, c.Request.Header)
		c.Next()
	}
}
