package app

import (
	"go.uber.org/fx"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/cache"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/config"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/database"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/dispatch"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/hub"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/logger"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/messaging"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/observability"
	repositoryorder "github.com/myezzsolution/MyEzz-Restaurants/internal/repository/order"
	httpserver "github.com/myezzsolution/MyEzz-Restaurants/internal/server/http"
	serviceorder "github.com/myezzsolution/MyEzz-Restaurants/internal/service/order"
	transporthttp "github.com/myezzsolution/MyEzz-Restaurants/internal/transport/http"
	transportws "github.com/myezzsolution/MyEzz-Restaurants/internal/transport/ws"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/worker"
	workerorder "github.com/myezzsolution/MyEzz-Restaurants/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	dispatch.Module,
	hub.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP and websocket transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	transportws.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
