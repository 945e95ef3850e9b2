package order

import (
	"go.uber.org/fx"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/dispatch"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/hub"
)

// Module provides the order service to Fx, narrowing the delivery client and
// the hub to the interfaces the service consumes.
var Module = fx.Options(
	fx.Provide(func(c dispatch.Client) Dispatcher { return c }),
	fx.Provide(func(h *hub.Hub) Notifier { return h }),
	fx.Provide(NewService),
)
