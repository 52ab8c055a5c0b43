package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/guestmatch/internal/cache"
	"github.com/oggyb/guestmatch/internal/config"
	"github.com/oggyb/guestmatch/internal/notify"
	"github.com/oggyb/guestmatch/internal/social"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Config     *config.Config

	// Notifier fans out like/match/report notifications in the background.
	Notifier notify.Notifier
	// Transitions runs block/unmatch/report; Directory answers invite and role lookups.
	Transitions social.Transitions
	Directory   social.Directory
}

// New creates a new AppContext
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, cfg *config.Config) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Config:     cfg,
	}
}
