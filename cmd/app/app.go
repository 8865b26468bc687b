package app

import (
	"context"
	"time"

	"github.com/aficionados/clubs/internal/adapters/config"
	"github.com/aficionados/clubs/internal/adapters/database/postgres"
	"github.com/aficionados/clubs/internal/adapters/database/redis/journal"
	"github.com/aficionados/clubs/internal/domain/service"
	"github.com/aficionados/clubs/pkg/logger/types"
)

// App holds the wired club services. Transports are built on top of it.
type App struct {
	Logger *types.Logger

	Users    *service.UserService
	Clubs    *service.ClubService
	Members  *service.MembershipService
	Bans     *service.BanService
	Requests *service.JoinRequestService
	Gate     *service.AuthorizationGate

	// Journal holds the latest warnings and errors logged by any component.
	Journal *journal.Storage

	auditInterval time.Duration
	close         func() error
}

func New(cfg *config.Config) *App {
	userStorage := postgres.NewUserStorage(cfg.Database)
	clubStorage := postgres.NewClubStorage(cfg.Database)
	memberStorage := postgres.NewMembershipStorage(cfg.Database)
	banStorage := postgres.NewBanStorage(cfg.Database)
	requestStorage := postgres.NewJoinRequestStorage(cfg.Database)

	members := service.NewMembershipService(
		cfg.Logger.Named("members"),
		memberStorage,
		clubStorage,
		userStorage,
		banStorage,
	)

	gate := service.NewAuthorizationGate(cfg.Logger.Named("auth"), members, cfg.Settings.ElevatedRoles...)

	return &App{
		Logger: cfg.Logger,

		Users: service.NewUserService(cfg.Logger.Named("users"), userStorage),
		Clubs: service.NewClubService(
			cfg.Logger.Named("clubs"),
			clubStorage,
			memberStorage,
			banStorage,
			requestStorage,
			gate,
			cfg.Settings.InviteLinkFormat,
		),
		Members: members,
		Bans:    service.NewBanService(cfg.Logger.Named("bans"), banStorage, memberStorage),
		Requests: service.NewJoinRequestService(
			cfg.Logger.Named("requests"),
			requestStorage,
			clubStorage,
			members,
			banStorage,
			cfg.Redis.Attempts,
			cfg.Settings.InviteMaxAttempts,
		),
		Gate: gate,

		Journal: cfg.Redis.Journal,

		auditInterval: cfg.Settings.AuditInterval,
		close:         cfg.Redis.Close,
	}
}

// Run audits club ownership at startup and then every audit interval until
// ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.audit(ctx)
	if a.auditInterval <= 0 {
		<-ctx.Done()
		return a.close()
	}

	ticker := time.NewTicker(a.auditInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.Logger.Info("Shutting down")
			return a.close()
		case <-ticker.C:
			a.audit(ctx)
		}
	}
}

func (a *App) audit(ctx context.Context) {
	violations, err := a.Members.AuditOwnership(ctx)
	if err != nil {
		a.Logger.Errorf("Ownership audit failed: %v", err)
		return
	}
	if len(violations) == 0 {
		a.Logger.Debug("Ownership audit passed")
	}
}
