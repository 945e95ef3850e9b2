package order

import (
	"testing"

	"go.uber.org/zap"

	"github.com/myezzsolution/MyEzz-Restaurants/internal/config"
	"github.com/myezzsolution/MyEzz-Restaurants/internal/database"
)

func TestNewStoreSelectsEphemeralWhenDisabled(t *testing.T) {
	var cfg config.Config

	store := NewStore(cfg, &database.Connections{}, zap.NewNop())
	if _, ok := store.(*Ephemeral); !ok {
		t.Fatalf("store = %T, want *Ephemeral", store)
	}
	if store.Mode() != ModeEphemeral {
		t.Errorf("mode = %s, want %s", store.Mode(), ModeEphemeral)
	}
}

func TestNewStoreSelectsFallbackWhenEnabled(t *testing.T) {
	var cfg config.Config
	cfg.Database.Enabled = true
	cfg.Database.EphemeralFallback = true

	store := NewStore(cfg, &database.Connections{}, zap.NewNop())
	if _, ok := store.(*Fallback); !ok {
		t.Fatalf("store = %T, want *Fallback", store)
	}
	if store.Mode() != ModePersistent {
		t.Errorf("mode = %s, want %s", store.Mode(), ModePersistent)
	}
}
