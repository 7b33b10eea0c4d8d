package server

import (
	"net/http"

	"risk-governance/internal/config"
	"risk-governance/internal/handlers"
	"risk-governance/internal/middleware"
	"risk-governance/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config) *gin.Engine {
	r := gin.Default()

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("grc_session", store))

	r.Use(middleware.InjectUser())

	// AUTH
	r.POST("/register", handlers.Register)
	r.POST("/login", handlers.Login)
	r.GET("/logout", handlers.Logout)

	auth := r.Group("/")
	auth.Use(middleware.RequireAuth())

	// КАТАЛОГ ШАБЛОНОВ КОНТРОЛЕЙ (только чтение)
	auth.GET("/templates", handlers.ListControlTemplates)

	// ОРГАНИЗАЦИИ
	auth.GET("/organizations", handlers.ListOrganizations)
	auth.POST("/organizations",
		middleware.RequireRole(models.RoleAdmin),
		handlers.CreateOrganization,
	)

	// РИСКИ
	auth.GET("/risks", handlers.ListRisks)
	auth.GET("/risks/:id", handlers.ShowRisk)
	auth.POST("/risks",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOwner),
		handlers.CreateRisk,
	)
	auth.POST("/risks/:id/response",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOwner),
		handlers.SetRiskResponse,
	)

	// шлюз активации: проверка читающая, активация — только владелец/админ
	auth.GET("/risks/:id/activation", handlers.ShowActivation)
	auth.POST("/risks/:id/activate",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOwner),
		handlers.ActivateRisk,
	)

	// КОНТРОЛИ И АТТЕСТАЦИИ
	auth.POST("/risks/:id/controls",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOwner),
		handlers.CreateControlInstance,
	)
	auth.GET("/controls/:id", handlers.ShowControlInstance)
	auth.POST("/controls/:id/status",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOwner),
		handlers.ChangeControlStatus,
	)
	auth.PUT("/controls/:id/attestations/:sub_id",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOwner, models.RoleAttestor),
		handlers.UpsertAttestation,
	)
	auth.GET("/controls/:id/dime", handlers.ShowDime)
	auth.GET("/controls/:id/confidence", handlers.ShowConfidence)

	// ЗАПРОСЫ НА ДОКАЗАТЕЛЬСТВА
	auth.GET("/controls/:id/evidence-requests", handlers.ListEvidenceRequests)
	auth.POST("/controls/:id/evidence-requests",
		middleware.RequireRole(models.RoleAdmin, models.RoleGovernance),
		handlers.CreateEvidenceRequest,
	)
	auth.PUT("/evidence-requests/:id",
		middleware.RequireRole(models.RoleAdmin, models.RoleGovernance, models.RoleRiskOwner),
		handlers.UpdateEvidenceRequest,
	)

	// ====== ТОЛЕРАНТНОСТЬ И НАРУШЕНИЯ ======
	// границы утверждает правление: запись только governance/admin
	auth.POST("/categories",
		middleware.RequireRole(models.RoleAdmin, models.RoleGovernance),
		handlers.CreateAppetiteCategory,
	)
	auth.POST("/series",
		middleware.RequireRole(models.RoleAdmin, models.RoleGovernance),
		handlers.CreateMeasurementSeries,
	)
	auth.GET("/metrics", handlers.ListToleranceMetrics)
	auth.POST("/metrics",
		middleware.RequireRole(models.RoleAdmin, models.RoleGovernance),
		handlers.CreateToleranceMetric,
	)

	// приём измерений (валидированный источник — см. границу ядра)
	auth.POST("/series/:id/measurements",
		middleware.RequireRole(models.RoleAdmin, models.RoleGovernance, models.RoleRiskOwner),
		handlers.IngestMeasurement,
	)

	auth.GET("/metrics/:id/breaches", handlers.ListBreaches)
	auth.POST("/metrics/:id/detect/:measurement_id",
		middleware.RequireRole(models.RoleAdmin, models.RoleGovernance, models.RoleRiskOwner),
		handlers.DetectBreach,
	)
	auth.POST("/breaches/:id/transition", handlers.TransitionBreach)
	auth.PUT("/breaches/:id/remediation", handlers.SetBreachRemediation)

	// АУДИТ
	auth.GET("/audit",
		middleware.RequireRole(models.RoleAdmin, models.RoleGovernance, models.RoleViewer),
		handlers.ListAuditLogs,
	)

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r
}
