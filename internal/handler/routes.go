package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/skillforge/skillforge-api/internal/middleware"
	"github.com/skillforge/skillforge-api/internal/models"
	"github.com/skillforge/skillforge-api/internal/repository"
	"github.com/skillforge/skillforge-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Courses     *CourseHandler
	Groups      *GroupHandler
	Sessions    *SessionHandler
	Attendance  *AttendanceHandler
	Evaluations *EvaluationHandler
	Enrollments *EnrollmentHandler
	Payments    *PaymentHandler
	Inventory   *InventoryHandler
	Competition *CompetitionHandler
	Quizzes     *QuizHandler
	Posts       *PostHandler
	Dashboard   *DashboardHandler
	Reports     *ReportHandler
}

// RegisterRoutes mounts the API surface on the given engine. Role groups
// mirror the front-desk, trainer, CLO, and student applications. Sensitive
// mutations additionally write audit log rows.
func RegisterRoutes(r *gin.Engine, h Handlers, auth *service.AuthService, users *repository.UserRepository) {
	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", middleware.JWT(auth), h.Auth.Logout)
		authGroup.POST("/change-password", middleware.JWT(auth), h.Auth.ChangePassword)
		authGroup.GET("/me", middleware.JWT(auth), h.Users.Me)
	}

	// Report downloads are authorised by the signed token in the path.
	api.GET("/reports/download/:token", h.Reports.Download)

	// Competitions are browsable without an account; claims are attached
	// when a token is sent so request logs carry the caller identity.
	public := api.Group("", middleware.OptionalJWT(auth))
	{
		public.GET("/competitions", h.Competition.List)
		public.GET("/competitions/:id", h.Competition.Get)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(auth))
	{
		authed.GET("/courses", h.Courses.List)
		authed.GET("/courses/:id", h.Courses.Get)
		authed.GET("/groups", h.Groups.List)
		authed.GET("/groups/:id", h.Groups.Get)
		authed.GET("/groups/:id/members", h.Groups.Members)
		authed.GET("/groups/:id/stats", h.Dashboard.GroupStats)
		authed.GET("/sessions", h.Sessions.List)
		authed.GET("/sessions/:id", h.Sessions.Get)
		authed.GET("/sessions/:id/attendance", h.Attendance.SessionSheet)
		authed.GET("/posts", h.Posts.Feed)
		authed.GET("/posts/:id", h.Posts.Get)
		authed.GET("/competitions/:id/teams", h.Competition.Teams)
		authed.GET("/competitions/:id/projects", h.Competition.Projects)
		authed.POST("/competitions/teams", h.Competition.RegisterTeam)
		authed.GET("/competitions/teams/:id/members", h.Competition.TeamMembers)
		authed.POST("/competitions/teams/:id/members", h.Competition.AddTeamMember)
		authed.DELETE("/competitions/teams/:id/members/:studentId", h.Competition.RemoveTeamMember)
		authed.PUT("/competitions/teams/:id/project", h.Competition.SubmitProject)
		authed.GET("/quizzes", h.Quizzes.List)
		authed.GET("/quizzes/:id", h.Quizzes.Get)
		authed.GET("/quizzes/:id/questions", h.Quizzes.Questions)
		authed.GET("/inventory/parts", h.Inventory.ListParts)
		authed.GET("/inventory/parts/:id", h.Inventory.GetPart)
		authed.GET("/inventory/orders", h.Inventory.ListOrders)
		authed.GET("/inventory/orders/:id", h.Inventory.GetOrder)
		authed.POST("/inventory/orders", h.Inventory.CreateOrder)
		authed.POST("/reports", h.Reports.Create)
		authed.GET("/reports/:id", h.Reports.Status)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(auth), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", h.Users.List)
		admin.POST("/users", h.Users.Create)
		admin.GET("/users/:id", h.Users.Get)
		admin.PUT("/users/:id", h.Users.Update)
		admin.DELETE("/users/:id", h.Users.Deactivate)
		admin.POST("/courses", h.Courses.Create)
		admin.PUT("/courses/:id", h.Courses.Update)
		admin.DELETE("/courses/:id", h.Courses.Deactivate)
		admin.POST("/groups", h.Groups.Create)
		admin.PUT("/groups/:id", h.Groups.Update)
		admin.POST("/groups/:id/members", h.Groups.AddMember)
		admin.DELETE("/groups/:id/members/:studentId", h.Groups.RemoveMember)
		admin.GET("/posts", h.Posts.List)
		admin.POST("/posts", h.Posts.Create)
		admin.PUT("/posts/:id", h.Posts.Update)
		admin.DELETE("/posts/:id", h.Posts.Delete)
		admin.POST("/inventory/parts", h.Inventory.CreatePart)
		admin.PUT("/inventory/parts/:id", h.Inventory.UpdatePart)
		admin.POST("/inventory/parts/:id/stock", h.Inventory.AdjustStock)
		admin.POST("/inventory/orders/:id/decide", h.Inventory.DecideOrder)
		admin.POST("/inventory/orders/:id/fulfill", h.Inventory.FulfillOrder)
	}

	trainer := api.Group("/trainer")
	trainer.Use(middleware.JWT(auth), middleware.RequireRoles(models.RoleTrainer, models.RoleAdmin))
	{
		trainer.POST("/sessions", h.Sessions.Create)
		trainer.PUT("/sessions/:id", h.Sessions.Update)
		trainer.POST("/sessions/:id/transition", middleware.Audit(users, "transition", "session"), h.Sessions.Transition)
		trainer.POST("/attendance", h.Attendance.Mark)
		trainer.POST("/attendance/bulk", h.Attendance.BulkMark)
		trainer.GET("/attendance", h.Attendance.List)
		trainer.GET("/attendance/students/:id/summary", h.Attendance.StudentSummary)
		trainer.POST("/evaluations", h.Evaluations.Rate)
		trainer.GET("/evaluations", h.Evaluations.List)
		trainer.GET("/evaluations/students/:id/average", h.Evaluations.StudentAverage)
		trainer.POST("/quizzes", h.Quizzes.Create)
		trainer.GET("/quizzes/:id/results", h.Quizzes.Results)
		trainer.GET("/performance", h.Dashboard.MyPerformance)
	}

	clo := api.Group("/clo")
	clo.Use(middleware.JWT(auth), middleware.RequireRoles(models.RoleCLO, models.RoleAdmin))
	{
		clo.GET("/dashboard", middleware.WithResponseMeta(), h.Dashboard.Dashboard)
		clo.GET("/trainers/top", h.Dashboard.TopTrainers)
		clo.GET("/trainers/:id/performance", h.Dashboard.TrainerPerformance)
		clo.GET("/courses/rollup", h.Dashboard.CourseRollups)
		clo.POST("/competitions", h.Competition.Create)
		clo.POST("/competitions/projects/:id/score", h.Competition.ScoreProject)
	}

	reception := api.Group("/reception")
	reception.Use(middleware.JWT(auth), middleware.RequireRoles(models.RoleReception, models.RoleAdmin))
	{
		reception.GET("/enrollments", h.Enrollments.List)
		reception.GET("/enrollments/:id", h.Enrollments.Get)
		reception.POST("/enrollments", h.Enrollments.Enroll)
		reception.PUT("/enrollments/:id/group", h.Enrollments.AssignGroup)
		reception.PUT("/enrollments/:id/status", h.Enrollments.ChangeStatus)
		reception.GET("/payments", h.Payments.List)
		reception.GET("/payments/:id", h.Payments.Get)
		reception.POST("/payments", h.Payments.Create)
		reception.POST("/payments/:id/verify", middleware.Audit(users, "verify", "payment"), h.Payments.Verify)
	}

	student := api.Group("/student")
	student.Use(middleware.JWT(auth), middleware.RequireRoles(models.RoleStudent))
	{
		student.GET("/enrollments", h.Enrollments.MyEnrollments)
		student.GET("/payments", h.Payments.MyPayments)
		student.POST("/payments/:id/reference", h.Payments.SubmitReference)
		student.GET("/attendance/summary", h.Attendance.MySummary)
		student.GET("/evaluations", h.Evaluations.MyEvaluations)
		student.POST("/quizzes/:id/submit", h.Quizzes.Submit)
		student.GET("/quizzes/:id/result", h.Quizzes.MyResult)
	}
}
