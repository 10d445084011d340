package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

func BadRequest(msg string) *Error { return &Error{Code: http.StatusBadRequest, Message: msg} }
func Conflict(msg string) *Error   { return &Error{Code: http.StatusConflict, Message: msg} }
func NotFound(msg string) *Error   { return &Error{Code: http.StatusNotFound, Message: msg} }
func Internal(msg string) *Error   { return &Error{Code: http.StatusInternalServerError, Message: msg} }

type HandlerFunc func(ctx *gin.Context) (any, *Error)

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, err := h(ctx)
		if err != nil {
			ctx.JSON(err.Code, gin.H{"error": err.Message})
			return
		}
		if ctx.Writer.Written() {
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

// Controller registers endpoints on a group. The plain verbs are protected by
// the group's auth middleware when one is configured.
type Controller struct {
	Group *gin.RouterGroup
	auth  gin.HandlerFunc
}

func (c *Controller) handlers(h HandlerFunc, protected bool) []gin.HandlerFunc {
	if protected && c.auth != nil {
		return []gin.HandlerFunc{c.auth, ResolveEndpoint(h)}
	}
	return []gin.HandlerFunc{ResolveEndpoint(h)}
}

func (c *Controller) GET(path string, h HandlerFunc)    { c.Group.GET(path, c.handlers(h, true)...) }
func (c *Controller) POST(path string, h HandlerFunc)   { c.Group.POST(path, c.handlers(h, true)...) }
func (c *Controller) PUT(path string, h HandlerFunc)    { c.Group.PUT(path, c.handlers(h, true)...) }
func (c *Controller) DELETE(path string, h HandlerFunc) { c.Group.DELETE(path, c.handlers(h, true)...) }

func (c *Controller) PUBLIC_GET(path string, h HandlerFunc)  { c.Group.GET(path, c.handlers(h, false)...) }
func (c *Controller) PUBLIC_POST(path string, h HandlerFunc) { c.Group.POST(path, c.handlers(h, false)...) }

// RAW registers a plain gin handler, for streaming endpoints.
func (c *Controller) RAW(method, path string, h gin.HandlerFunc, protected bool) {
	chain := []gin.HandlerFunc{h}
	if protected && c.auth != nil {
		chain = append([]gin.HandlerFunc{c.auth}, chain...)
	}
	c.Group.Handle(method, path, chain...)
}
