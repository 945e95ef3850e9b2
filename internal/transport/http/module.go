package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/myezzsolution/MyEzz-Restaurants/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
)
