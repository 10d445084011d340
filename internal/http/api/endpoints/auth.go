package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vakit/internal/http/api"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/api/packets"
	"github.com/Nixie-Tech-LLC/vakit/internal/http/middleware"
)

const adminSubject = "admin"

type AccountManager struct {
	jwtSecret    string
	passwordHash string
}

// AuthModule mounts POST /auth/login. Only mount it when an admin password is configured.
func AuthModule(jwtSecret, passwordHash string) api.Module {
	ctl := &AccountManager{jwtSecret: jwtSecret, passwordHash: passwordHash}
	return api.ModuleFunc(func(c *api.Controller) {
		c.PUBLIC_POST("/auth/login", ctl.login)
	})
}

// POST /api/auth/login
func (a *AccountManager) login(ctx *gin.Context) (any, *api.Error) {
	var request packets.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	if !middleware.CheckPassword(a.passwordHash, request.Password) {
		log.Warn().Str("client", ctx.ClientIP()).Msg("failed admin login")
		return nil, &api.Error{Code: http.StatusUnauthorized, Message: middleware.ErrInvalidCredentials.Error()}
	}

	token, err := middleware.GenerateJWT(adminSubject, a.jwtSecret, middleware.DefaultTokenTTL)
	if err != nil {
		return nil, api.Internal("could not generate token")
	}
	return packets.TokenResponse{Token: token}, nil
}
