package apiv1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/facilityhub/facility/pkg/common"
)

// HealthCheck pings one dependency of the gateway
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthGroup struct {
	redisClient *common.RedisClient
	checks      []HealthCheck
	routerGroup *echo.Group
}

// NewHealthGroup registers the health route. rdb may be nil in local mode.
func NewHealthGroup(g *echo.Group, rdb *common.RedisClient, checks ...HealthCheck) *HealthGroup {
	group := &HealthGroup{routerGroup: g, redisClient: rdb, checks: checks}

	if rdb != nil {
		group.checks = append(group.checks, HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
	}

	g.GET("", group.HealthCheck)

	return group
}

func (h *HealthGroup) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()

	status := http.StatusOK
	components := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			log.Error().Err(err).Str("component", check.Name).Msg("health check failed")
			components[check.Name] = err.Error()
			status = http.StatusInternalServerError
			continue
		}
		components[check.Name] = "ok"
	}

	result := "ok"
	if status != http.StatusOK {
		result = "not ok"
	}

	return c.JSON(status, map[string]interface{}{
		"status":     result,
		"components": components,
	})
}
