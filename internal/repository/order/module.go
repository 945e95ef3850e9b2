package order

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/config"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/database"
)

// Module provides the order store to Fx.
var Module = fx.Provide(NewStore)

// NewStore selects the storage backend. With the database enabled the
// repository is wrapped by the schema fallback so consumers ride out
// outages; with it disabled orders live in the ephemeral store only.
func NewStore(cfg config.Config, conns *database.Connections, log *zap.Logger) Store {
	if !cfg.Database.Enabled {
		log.Info("database disabled; orders held in memory")
		return NewEphemeral()
	}
	return NewFallback(NewRepository(conns), NewEphemeral(), cfg, log)
}
