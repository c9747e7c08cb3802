package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/squatlab/backend/internal/handlers"
	"github.com/squatlab/backend/internal/middleware"
)

type Deps struct {
	Auth          *middleware.Auth
	AuthHandler   *handlers.AuthHandler
	UploadHandler *handlers.UploadHandler
	SearchHandler *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.Use(d.Auth.Authenticate)

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"service": "squatlab"})
	})
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST("/join", d.AuthHandler.Join)
	e.POST("/login", d.AuthHandler.Login)
	e.POST("/reissue", d.AuthHandler.Reissue)
	e.POST("/logout", d.AuthHandler.Logout)

	private := e.Group("", middleware.RequirePrincipal)
	private.POST("/upload", d.UploadHandler.Upload)
	private.GET("/videos", d.UploadHandler.Videos)
	if d.SearchHandler != nil {
		private.GET("/results/search", d.SearchHandler.Search)
	}
}

// SkipPaths is the auth middleware allow-list: these are reachable without
// any token.
func SkipPaths() []string {
	return []string{"/", "/join", "/login", "/reissue", "/health/live", "/health/ready"}
}
