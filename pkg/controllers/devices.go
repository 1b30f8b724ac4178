package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/veridia/estca/pkg/services"
)

type devicesHttpRoutes struct {
	svc services.ESTService
}

func NewDevicesHttpRoutes(svc services.ESTService) *devicesHttpRoutes {
	return &devicesHttpRoutes{
		svc: svc,
	}
}

type deviceURIParams struct {
	ID string `uri:"id" binding:"required"`
}

func (r *devicesHttpRoutes) GetAllDevices(ctx *gin.Context) {
	devices, err := r.svc.ListDevices(ctx.Request.Context())
	if err != nil {
		writeESTError(ctx, err)
		return
	}

	ctx.JSON(200, devices)
}

func (r *devicesHttpRoutes) GetDeviceByID(ctx *gin.Context) {
	var params deviceURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		ctx.JSON(400, gin.H{"err": err.Error()})
		return
	}

	device, err := r.svc.GetDevice(ctx.Request.Context(), params.ID)
	if err != nil {
		writeESTError(ctx, err)
		return
	}

	ctx.JSON(200, device)
}

func (r *devicesHttpRoutes) DeleteDevice(ctx *gin.Context) {
	var params deviceURIParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		ctx.JSON(400, gin.H{"err": err.Error()})
		return
	}

	if err := r.svc.DeleteDevice(ctx.Request.Context(), params.ID); err != nil {
		writeESTError(ctx, err)
		return
	}

	ctx.JSON(200, gin.H{"deleted": params.ID})
}

func (r *devicesHttpRoutes) GetStats(ctx *gin.Context) {
	stats, err := r.svc.Stats(ctx.Request.Context())
	if err != nil {
		writeESTError(ctx, err)
		return
	}

	ctx.JSON(200, stats)
}
