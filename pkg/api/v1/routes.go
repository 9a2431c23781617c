package apiv1

import (
	"github.com/labstack/echo/v4"

	"github.com/facilityhub/facility/pkg/gateway/services"
	"github.com/facilityhub/facility/pkg/types"
)

// RegisterEntityRoutes mounts the facility, room and resident routes on g,
// wrapping each route in m
func RegisterEntityRoutes(g *echo.Group, svc *services.Services, m ...echo.MiddlewareFunc) {
	facilities := NewEntityGroup(g.Group("/"+types.KindFacility.Plural()), svc.Facilities, func() *types.Facility { return &types.Facility{} }, m...)
	rooms := NewEntityGroup(g.Group("/"+types.KindRoom.Plural()), svc.Rooms, func() *types.Room { return &types.Room{} }, m...)
	residents := NewEntityGroup(g.Group("/"+types.KindResident.Plural()), svc.Residents, func() *types.Resident { return &types.Resident{} }, m...)

	search := g.Group("/_search")
	facilities.RegisterSearch(search, "/"+types.KindFacility.Plural())
	rooms.RegisterSearch(search, "/"+types.KindRoom.Plural())
	residents.RegisterSearch(search, "/"+types.KindResident.Plural())

	rooms.RegisterByParent(g, "/facility/rooms", "facility_id")
	residents.RegisterByParent(g, "/room/residents", "room_id")
}
