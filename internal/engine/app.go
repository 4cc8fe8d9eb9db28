package engine

import (
	"github.com/colonyops/refine/internal/core/config"
	"github.com/colonyops/refine/internal/core/eventbus"
	"github.com/colonyops/refine/internal/data/db"
)

// App is the central entry point for all refine operations.
// Commands consume App instead of cherry-picking raw dependencies.
type App struct {
	Sessions *SessionService
	Metrics  *Metrics
	Bus      *eventbus.EventBus
	Config   *config.Config
	DB       *db.DB
}

// NewApp constructs an App from explicit dependencies.
func NewApp(
	sessions *SessionService,
	metrics *Metrics,
	bus *eventbus.EventBus,
	cfg *config.Config,
	database *db.DB,
) *App {
	return &App{
		Sessions: sessions,
		Metrics:  metrics,
		Bus:      bus,
		Config:   cfg,
		DB:       database,
	}
}
