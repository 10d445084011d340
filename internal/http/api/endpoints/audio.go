package endpoints

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vakit/internal/http/api"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api/packets"
)

// a test that has not failed within this window is reported as started
const testStartGrace = 300 * time.Millisecond

type AudioController struct {
	player Player
	assets AssetStore
	grace  time.Duration
}

// AudioModule mounts the audio test, stop and asset endpoints.
func AudioModule(player Player, assets AssetStore) api.Module {
	ctl := &AudioController{player: player, assets: assets, grace: testStartGrace}
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/audio/test", ctl.test)
		c.POST("/audio/stop", ctl.stop)
		c.PUBLIC_GET("/audio/assets", ctl.listAssets)
		c.POST("/audio/assets", ctl.upload)
	})
}

// POST /api/audio/test
func (a *AudioController) test(ctx *gin.Context) (any, *api.Error) {
	var request packets.TestAudioRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&request); err != nil {
			return nil, api.BadRequest(err.Error())
		}
	}
	duration := time.Duration(request.Duration) * time.Second

	// the test outlives the request
	result := make(chan error, 1)
	go func() { result <- a.player.TestAudio(context.Background(), request.Volume, duration) }()

	select {
	case err := <-result:
		if err != nil {
			return nil, toAPIError(err)
		}
		return packets.MessageResponse{Message: "audio test finished"}, nil
	case <-time.After(a.grace):
		ctx.JSON(http.StatusAccepted, packets.MessageResponse{Message: "audio test started"})
		return nil, nil
	}
}

// POST /api/audio/stop
func (a *AudioController) stop(ctx *gin.Context) (any, *api.Error) {
	if err := a.player.Stop(); err != nil {
		return nil, api.Internal(err.Error())
	}
	return packets.MessageResponse{Message: "playback stopped"}, nil
}

// GET /api/audio/assets
func (a *AudioController) listAssets(ctx *gin.Context) (any, *api.Error) {
	names, err := a.assets.List()
	if err != nil {
		return nil, api.Internal(err.Error())
	}
	if names == nil {
		names = []string{}
	}
	return packets.AssetsResponse{Assets: names}, nil
}

// POST /api/audio/assets (multipart field "file")
func (a *AudioController) upload(ctx *gin.Context) (any, *api.Error) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return nil, api.BadRequest("missing file")
	}
	name := ctx.DefaultPostForm("name", fileHeader.Filename)

	path, err := a.assets.SaveFile(fileHeader, name)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("asset upload rejected")
		return nil, toAPIError(err)
	}
	return packets.UploadResponse{Name: name, Path: path}, nil
}
