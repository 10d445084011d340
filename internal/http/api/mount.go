package api

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/vakit/internal/http/middleware"
)

// Module is a pluggable feature that attaches its endpoints to a Controller (a gin group).
type Module interface {
	Mount(c *Controller)
}

// ModuleFunc lets you define a Module with a simple function.
type ModuleFunc func(c *Controller)

func (f ModuleFunc) Mount(c *Controller) { f(c) }

// GroupConfig tells the api package how to mount a group.
type GroupConfig struct {
	Prefix     string
	Auth       bool
	SecretKey  string            // required if Auth == true
	Middleware []gin.HandlerFunc // optional additional middleware
}

// MountGroup mounts one or more Modules under a prefix. When Auth is set the
// controller's GET/POST/PUT/DELETE routes require a bearer token; PUBLIC_
// routes never do.
func MountGroup(parent gin.IRouter, cfg GroupConfig, modules ...Module) error {
	var grp *gin.RouterGroup

	switch v := parent.(type) {
	case *gin.Engine:
		grp = v.Group(cfg.Prefix)
	case *gin.RouterGroup:
		if cfg.Prefix != "" {
			grp = v.Group(cfg.Prefix)
		} else {
			grp = v
		}
	default:
		return fmt.Errorf("api.MountGroup: unsupported router type %T", parent)
	}

	// Apply middleware in a deterministic order.
	for _, mw := range cfg.Middleware {
		grp.Use(mw)
	}

	controller := &Controller{Group: grp}
	if cfg.Auth {
		if cfg.SecretKey == "" {
			return errors.New("api.MountGroup: Auth enabled but SecretKey is empty")
		}
		controller.auth = middleware.JWTMiddleware(cfg.SecretKey)
	}

	for _, m := range modules {
		m.Mount(controller)
	}
	return nil
}
