package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edusuite/usafiri/core/transport"
)

type transportApi struct {
	svc  *transport.Service
	deps ServerDeps
}

func registerTransportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := transportApi{svc: deps.TransportSvc, deps: deps}

	tg := g.Group("/transport", jwt, adminMiddleware())

	vg := tg.Group("/vehicles")
	vg.POST("", api.createVehicle)
	vg.GET("", api.queryVehicles)
	vg.PATCH("/:id", api.updateVehicle)
	vg.DELETE("/:id", api.deleteVehicle)

	pg := tg.Group("/pickup-points")
	pg.POST("", api.createPickupPoint)
	pg.GET("", api.queryPickupPoints)
	pg.PATCH("/:id", api.updatePickupPoint)
	pg.DELETE("/:id", api.deletePickupPoint)

	fg := tg.Group("/fees")
	fg.POST("", api.createFeeStructure)
	fg.GET("", api.queryFeeStructures)
	fg.PATCH("/:id", api.updateFeeStructure)
	fg.DELETE("/:id", api.deleteFeeStructure)

	rg := tg.Group("/routes")
	rg.POST("", api.createRoute)
	rg.GET("", api.queryRoutes)
	rg.PATCH("/:id", api.updateRoute)
	rg.DELETE("/:id", api.deleteRoute)
	rg.POST("/assign-vehicle", api.assignVehicle)

	ag := tg.Group("/allocations")
	ag.POST("", api.allocate)
	ag.GET("", api.queryAllocations)
	ag.DELETE("/:id", api.deleteAllocation)

	sg := tg.Group("/student-fees")
	sg.GET("", api.queryStudentFees)
	sg.PATCH("/:id/pay", api.payStudentFee)
	sg.DELETE("/:id", api.deleteStudentFee)
}

// trapTransportErr translates domain errors into HTTP errors; anything else
// passes through for the error handler to treat as a server error.
func trapTransportErr(err error, msg string) error {
	switch errors.Cause(err) {
	case transport.ErrNotFound, transport.ErrRouteNotFound:
		return errHttpNotFound
	case transport.ErrDuplicateAllocation:
		return echo.NewHTTPError(http.StatusConflict, transport.ErrDuplicateAllocation.Error())
	case transport.ErrDuplicateKey:
		return echo.NewHTTPError(http.StatusConflict, transport.ErrDuplicateKey.Error())
	case transport.ErrProtected:
		return echo.NewHTTPError(http.StatusBadRequest, transport.ErrProtected.Error())
	}
	return errors.Wrap(err, msg)
}

// Vehicles

func (api *transportApi) createVehicle(ctx echo.Context) error {
	var data transport.NewVehicle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVehicle")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	v, err := api.svc.CreateVehicle(ctx.Request().Context(), data)
	if err != nil {
		return trapTransportErr(err, "creating vehicle")
	}
	return respondCreated(ctx, "Vehicle created", v)
}

func (api *transportApi) queryVehicles(ctx echo.Context) error {
	vehicles, err := api.svc.QueryVehicles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying vehicles")
	}
	if vehicles == nil {
		vehicles = []transport.Vehicle{}
	}
	return respondOK(ctx, "Vehicles", vehicles)
}

func (api *transportApi) updateVehicle(ctx echo.Context) error {
	var data transport.UpdateVehicle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateVehicle")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	v, err := api.svc.UpdateVehicle(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return trapTransportErr(err, "updating vehicle")
	}
	return respondOK(ctx, "Vehicle updated", v)
}

func (api *transportApi) deleteVehicle(ctx echo.Context) error {
	if err := api.svc.DeleteVehicle(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return trapTransportErr(err, "deleting vehicle")
	}
	return respondOK(ctx, "Vehicle deleted", nil)
}

// Pickup points

func (api *transportApi) createPickupPoint(ctx echo.Context) error {
	var data transport.NewPickupPoint
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPickupPoint")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	p, err := api.svc.CreatePickupPoint(ctx.Request().Context(), data)
	if err != nil {
		return trapTransportErr(err, "creating pickup point")
	}
	return respondCreated(ctx, "Pickup point created", p)
}

func (api *transportApi) queryPickupPoints(ctx echo.Context) error {
	points, err := api.svc.QueryPickupPoints(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pickup points")
	}
	if points == nil {
		points = []transport.PickupPoint{}
	}
	return respondOK(ctx, "Pickup points", points)
}

func (api *transportApi) updatePickupPoint(ctx echo.Context) error {
	var data transport.UpdatePickupPoint
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePickupPoint")
	}

	p, err := api.svc.UpdatePickupPoint(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return trapTransportErr(err, "updating pickup point")
	}
	return respondOK(ctx, "Pickup point updated", p)
}

func (api *transportApi) deletePickupPoint(ctx echo.Context) error {
	if err := api.svc.DeletePickupPoint(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return trapTransportErr(err, "deleting pickup point")
	}
	return respondOK(ctx, "Pickup point deleted", nil)
}

// Fee structures

func (api *transportApi) createFeeStructure(ctx echo.Context) error {
	var data transport.NewFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeStructure")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	f, err := api.svc.CreateFeeStructure(ctx.Request().Context(), data)
	if err != nil {
		return trapTransportErr(err, "creating fee structure")
	}
	return respondCreated(ctx, "Fee structure created", f)
}

func (api *transportApi) queryFeeStructures(ctx echo.Context) error {
	fees, err := api.svc.QueryFeeStructures(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if fees == nil {
		fees = []transport.FeeStructure{}
	}
	return respondOK(ctx, "Fee structures", fees)
}

func (api *transportApi) updateFeeStructure(ctx echo.Context) error {
	var data transport.UpdateFeeStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFeeStructure")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	f, err := api.svc.UpdateFeeStructure(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return trapTransportErr(err, "updating fee structure")
	}
	return respondOK(ctx, "Fee structure updated", f)
}

func (api *transportApi) deleteFeeStructure(ctx echo.Context) error {
	if err := api.svc.DeleteFeeStructure(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return trapTransportErr(err, "deleting fee structure")
	}
	return respondOK(ctx, "Fee structure deleted", nil)
}

// Routes

func (api *transportApi) createRoute(ctx echo.Context) error {
	var data transport.NewRoute
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoute")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	r, err := api.svc.CreateRoute(ctx.Request().Context(), data)
	if err != nil {
		return trapTransportErr(err, "creating route")
	}
	return respondCreated(ctx, "Route created", r)
}

func (api *transportApi) queryRoutes(ctx echo.Context) error {
	routes, err := api.svc.QueryRoutes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying routes")
	}
	if routes == nil {
		routes = []transport.Route{}
	}
	return respondOK(ctx, "Routes", routes)
}

func (api *transportApi) updateRoute(ctx echo.Context) error {
	var data transport.UpdateRoute
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRoute")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	r, err := api.svc.UpdateRoute(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return trapTransportErr(err, "updating route")
	}
	return respondOK(ctx, "Route updated", r)
}

func (api *transportApi) deleteRoute(ctx echo.Context) error {
	if err := api.svc.DeleteRoute(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return trapTransportErr(err, "deleting route")
	}
	return respondOK(ctx, "Route deleted", nil)
}

func (api *transportApi) assignVehicle(ctx echo.Context) error {
	var data transport.AssignVehicle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignVehicle")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	va, err := api.svc.AssignVehicle(ctx.Request().Context(), data)
	if err != nil {
		return trapTransportErr(err, "assigning vehicle")
	}
	return respondCreated(ctx, "Vehicle assigned to route", va)
}

// Allocations

func (api *transportApi) allocate(ctx echo.Context) error {
	var data transport.NewAllocation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAllocation")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	a, err := api.svc.Allocate(ctx.Request().Context(), data)
	if err != nil {
		return trapTransportErr(err, "allocating student")
	}
	return respondCreated(ctx, "Student allocated to transport", a)
}

func (api *transportApi) queryAllocations(ctx echo.Context) error {
	allocations, err := api.svc.QueryAllocations(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying allocations")
	}
	if allocations == nil {
		allocations = []transport.Allocation{}
	}
	return respondOK(ctx, "Allocations", allocations)
}

func (api *transportApi) deleteAllocation(ctx echo.Context) error {
	if err := api.svc.DeleteAllocation(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return trapTransportErr(err, "deleting allocation")
	}
	return respondOK(ctx, "Allocation deleted", nil)
}

// Student fees

func (api *transportApi) queryStudentFees(ctx echo.Context) error {
	fees, err := api.svc.QueryStudentFees(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying student fees")
	}
	if fees == nil {
		fees = []transport.StudentFeeRecord{}
	}
	return respondOK(ctx, "Student fees", fees)
}

func (api *transportApi) payStudentFee(ctx echo.Context) error {
	data := transport.UpdateFeeStatus{Status: transport.FeeStatusPaid}
	fee, err := api.svc.UpdateStudentFeeStatus(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return trapTransportErr(err, "updating fee status")
	}
	return respondOK(ctx, "Fee marked as paid", fee)
}

func (api *transportApi) deleteStudentFee(ctx echo.Context) error {
	if err := api.svc.DeleteStudentFee(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return trapTransportErr(err, "deleting student fee")
	}
	return respondOK(ctx, "Student fee deleted", nil)
}
