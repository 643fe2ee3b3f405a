package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kabantay/kabantay-api/internal/container"

	handlers "github.com/kabantay/kabantay-api/internal/interface/http"
	"github.com/kabantay/kabantay-api/internal/interface/middleware"
	"github.com/kabantay/kabantay-api/pkg/helpers"
)

// UserModule wires user HTTP handlers and auth middleware into routes
// Public: POST /api/users, POST /api/users/login, POST /api/users/refresh
// Protected: everything else under /api/users
// All routes are registered under the given RouterGroup (usually /api)

type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	// Public with rate limiting
	registerLimiter := middleware.RateLimit(container.GetRedis(), 20, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil) // 10 req/min per IP
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)

	rg.POST("/users", registerLimiter, m.Handler.Create)
	rg.POST("/users/login", loginLimiter, m.Handler.Login)
	rg.POST("/users/refresh", refreshLimiter, m.Handler.Refresh)

	// Protected
	auth := rg.Group("/users")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("", m.Handler.GetAll)
		auth.GET("/by-email", m.Handler.GetByEmail)
		auth.GET("/deleted", m.Handler.GetAllDeleted)
		auth.GET("/search", m.Handler.Search)
		auth.PATCH("/:userId", m.Handler.Update)
		auth.PATCH("/:userId/soft-delete", m.Handler.SoftDelete)
		auth.POST("/change-password", m.Handler.ChangePassword)
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/profile/photo", m.Handler.UploadProfilePhoto)
	}
}
