package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/veridia/estca/pkg/config"
	"github.com/veridia/estca/pkg/controllers"
	"github.com/veridia/estca/pkg/services"
)

func NewESTHttpRoutes(router *gin.RouterGroup, svc services.ESTService, encoding config.ResponseEncoding) *gin.RouterGroup {
	routes := controllers.NewESTHttpRoutes(svc, encoding)

	est := router.Group("/.well-known/est")

	est.GET("/cacerts", routes.GetCACerts)

	est.POST("/bootstrap", routes.EnrollReenroll)
	est.POST("/simpleenroll", routes.EnrollReenroll)
	est.POST("/simplereenroll", routes.EnrollReenroll)

	return est
}

func NewDevicesHttpRoutes(router *gin.RouterGroup, svc services.ESTService) *gin.RouterGroup {
	routes := controllers.NewDevicesHttpRoutes(svc)

	api := router.Group("/api")

	api.GET("/stats", routes.GetStats)
	api.GET("/devices", routes.GetAllDevices)
	api.GET("/devices/:id", routes.GetDeviceByID)
	api.DELETE("/devices/:id", routes.DeleteDevice)

	return api
}
