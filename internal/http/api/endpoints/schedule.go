package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/vakit/internal/http/api"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api/packets"
)

type ScheduleController struct {
	planner Planner
}

// ScheduleModule mounts GET /scheduled and POST /reschedule.
func ScheduleModule(planner Planner) api.Module {
	ctl := &ScheduleController{planner: planner}
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_GET("/scheduled", ctl.list)
		c.POST("/reschedule", ctl.reschedule)
	})
}

// GET /api/scheduled
func (s *ScheduleController) list(ctx *gin.Context) (any, *api.Error) {
	triggers := s.planner.ListScheduled()
	return packets.ScheduledResponse{Count: len(triggers), Triggers: triggers}, nil
}

// POST /api/reschedule
func (s *ScheduleController) reschedule(ctx *gin.Context) (any, *api.Error) {
	n, err := s.planner.Replan()
	if err != nil {
		return nil, toAPIError(err)
	}
	return packets.RescheduleResponse{Scheduled: n}, nil
}
