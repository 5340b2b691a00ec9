// Package router mounts the HTTP API on a gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/college-scheduling-api/internal/handler"
	"github.com/noah-isme/college-scheduling-api/internal/middleware"
	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/service"
	"github.com/noah-isme/college-scheduling-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/college-scheduling-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/college-scheduling-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by New.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Departments   *handler.DepartmentHandler
	Buildings     *handler.BuildingHandler
	Rooms         *handler.RoomHandler
	Courses       *handler.CourseHandler
	Sections      *handler.SectionHandler
	Subjects      *handler.SubjectHandler
	Faculty       *handler.FacultyHandler
	Semesters     *handler.SemesterHandler
	Schedules     *handler.ScheduleHandler
	Analytics     *handler.AnalyticsHandler
	Exports       *handler.ExportHandler
	Notifications *handler.NotificationHandler
	Ops           *handler.MetricsHandler
}

// Options configures the engine.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Tokens         middleware.TokenValidator
	Audit          middleware.AuditWriter
	Metrics        *service.MetricsService
	Logger         *zap.Logger
}

// New builds the engine with the shared middleware chain and every route.
func New(h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Ops.Health)
	r.GET("/ready", h.Ops.Ready)
	r.GET("/metrics", h.Ops.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	managers := middleware.RequireRoles(middleware.Managers...)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	authed := auth.Group("", middleware.JWT(opts.Tokens))
	authed.POST("/logout", h.Auth.Logout)
	authed.POST("/change-password", h.Auth.ChangePassword)
	authed.GET("/me", h.Auth.Me)

	// Signed download links are public.
	api.GET("/export/:token",
		middleware.OptionalJWT(opts.Tokens),
		middleware.Audit(opts.Audit, opts.Logger, models.AuditActionExport, "export_download", ""),
		h.Exports.Download)

	secured := api.Group("", middleware.JWT(opts.Tokens))

	users := secured.Group("/users", managers)
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)

	crud(secured.Group("/departments"), managers, h.Departments.List, h.Departments.Get, h.Departments.Create, h.Departments.Update, h.Departments.Delete)
	crud(secured.Group("/buildings"), managers, h.Buildings.List, h.Buildings.Get, h.Buildings.Create, h.Buildings.Update, h.Buildings.Delete)
	crud(secured.Group("/courses"), managers, h.Courses.List, h.Courses.Get, h.Courses.Create, h.Courses.Update, h.Courses.Delete)
	crud(secured.Group("/subjects"), managers, h.Subjects.List, h.Subjects.Get, h.Subjects.Create, h.Subjects.Update, h.Subjects.Delete)

	rooms := secured.Group("/rooms")
	crud(rooms, managers, h.Rooms.List, h.Rooms.Get, h.Rooms.Create, h.Rooms.Update, h.Rooms.Delete)
	rooms.GET("/:id/schedules", h.Schedules.ListByRoom)

	sections := secured.Group("/sections")
	crud(sections, managers, h.Sections.List, h.Sections.Get, h.Sections.Create, h.Sections.Update, h.Sections.Delete)
	sections.GET("/:id/schedules", h.Schedules.ListBySection)

	faculty := secured.Group("/faculty")
	crud(faculty, managers, h.Faculty.List, h.Faculty.Get, h.Faculty.Create, h.Faculty.Update, h.Faculty.Delete)
	faculty.GET("/:id/schedules", h.Schedules.ListByFaculty)

	semesters := secured.Group("/semesters")
	semesters.GET("/active", h.Semesters.GetActive)
	crud(semesters, managers, h.Semesters.List, h.Semesters.Get, h.Semesters.Create, h.Semesters.Update, h.Semesters.Delete)
	semesters.POST("/:id/activate", managers, h.Semesters.Activate)

	schedules := secured.Group("/schedules")
	schedules.GET("", h.Schedules.List)
	schedules.GET("/grid", h.Schedules.Grid)
	schedules.GET("/utilization", h.Analytics.Utilization)
	schedules.POST("/check", managers, h.Schedules.Check)
	schedules.POST("/bulk", managers, h.Schedules.Bulk)
	schedules.GET("/:id", h.Schedules.Get)
	schedules.POST("", managers, h.Schedules.Create)
	schedules.PUT("/:id", managers, h.Schedules.Update)
	schedules.DELETE("/:id", managers, h.Schedules.Delete)
	schedules.POST("/:id/deactivate", managers, h.Schedules.Deactivate)

	exports := secured.Group("/exports", middleware.RequireRoles(middleware.Exporters...))
	exports.POST("", h.Exports.Create)
	exports.GET("/:id", h.Exports.Get)

	notifications := secured.Group("/notifications", managers)
	notifications.GET("", h.Notifications.List)
	notifications.POST("/faculty/:id/digest", h.Notifications.SendDigest)

	return r
}

// crud mounts the list/get/create/update/delete routes of a reference
// resource. Reads are open to every authenticated role.
func crud(g *gin.RouterGroup, write gin.HandlerFunc, list, get, create, update, remove gin.HandlerFunc) {
	g.GET("", list)
	g.GET("/:id", get)
	g.POST("", write, create)
	g.PUT("/:id", write, update)
	g.DELETE("/:id", write, remove)
}
