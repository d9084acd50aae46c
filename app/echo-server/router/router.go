package router

import (
	"github.com/labstack/echo/v4"

	"customerIntel/internal/rest"
)

func SetupTrackingRoutes(api *echo.Group, handler *rest.TrackingHandler) {
	track := api.Group("/track")

	track.POST("/pageview", handler.PageView)
	track.POST("/add-to-cart", handler.AddToCart)
	track.POST("/begin-checkout", handler.BeginCheckout)
	track.POST("/purchase", handler.Purchase)
	track.POST("/sign-up", handler.SignUp)
	track.POST("/event/:type", handler.Event)
}

func SetupRealTimeRoutes(admin *echo.Group, handler *rest.TrackingHandler) {
	admin.GET("/realtime", handler.RealTime)
}

func SetupAttributionRoutes(admin *echo.Group, handler *rest.AttributionHandler) {
	attribution := admin.Group("/attribution")

	attribution.GET("/models", handler.Models)
	attribution.GET("/conversions/:id", handler.Conversion)
	attribution.GET("/compare", handler.Compare)
	attribution.GET("/channels", handler.Channels)
	attribution.GET("/journey/:customer_id", handler.Journey)
}

func SetupChurnRoutes(admin *echo.Group, handler *rest.ChurnHandler) {
	churn := admin.Group("/churn")

	churn.GET("/customers/:id", handler.Predict)
	churn.GET("/at-risk", handler.AtRisk)
	churn.GET("/segments", handler.Segments)
	churn.GET("/cohorts", handler.Cohorts)
	churn.GET("/dashboard", handler.Dashboard)
	churn.POST("/recalculate", handler.Recalculate)
}

func SetupLtvRoutes(admin *echo.Group, handler *rest.LtvHandler) {
	ltv := admin.Group("/ltv")

	ltv.GET("/customers/:id", handler.Predict)
	ltv.GET("/high-potential", handler.HighPotential)
	ltv.GET("/segments", handler.Segments)
	ltv.GET("/cohorts", handler.Cohorts)
	ltv.GET("/tiers", handler.Tiers)
	ltv.POST("/recalculate", handler.Recalculate)
}

func SetupDuplicateRoutes(admin *echo.Group, handler *rest.DuplicateHandler) {
	duplicates := admin.Group("/duplicates")

	duplicates.GET("", handler.Groups)
	duplicates.GET("/stats", handler.Stats)
	duplicates.GET("/customers/:id", handler.ForCustomer)
	duplicates.POST("/auto-merge", handler.AutoMerge)
	duplicates.POST("/:id/dismiss", handler.Dismiss)
}

func SetupCustomerRoutes(admin *echo.Group, handler *rest.CustomerHandler) {
	customers := admin.Group("/customers")

	customers.POST("/rfm/recalculate", handler.RecalculateRFM)
	customers.GET("/uuid/:uuid", handler.GetByUUID)
	customers.GET("/:id", handler.Get)
	customers.GET("/:id/pii", handler.PII)
	customers.GET("/:id/export", handler.Export)
	customers.POST("/:id/merge", handler.Merge)
	customers.POST("/:id/anonymize", handler.Anonymize)
}

func SetupConversionRoutes(admin *echo.Group, handler *rest.ConversionHandler) {
	conversions := admin.Group("/conversions")

	conversions.POST("/process", handler.Process)
	conversions.POST("/:conversion_id/confirm", handler.Confirm)
	conversions.POST("/:conversion_id/fail", handler.Fail)
}
