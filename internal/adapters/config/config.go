package config

import (
	"fmt"
	"log"
	"os"
	"time"

	postgresStorage "github.com/aficionados/clubs/internal/adapters/database/postgres"
	"github.com/aficionados/clubs/internal/adapters/database/redis"
	"github.com/aficionados/clubs/internal/domain/entity"
	"github.com/aficionados/clubs/pkg/logger"
	"github.com/aficionados/clubs/pkg/logger/types"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"go.uber.org/zap/zapcore"
	gormLogger "gorm.io/gorm/logger"
)

type Config struct {
	Logger   *types.Logger
	Database *gorm.DB
	Redis    *redis.Client
	Settings Settings
}

type Settings struct {
	// ElevatedRoles may manage any club without being a member of it.
	ElevatedRoles []entity.PlatformRole

	InviteMaxAttempts int64
	InviteLinkFormat  string

	// AuditInterval is how often club ownership is re-checked; zero runs the
	// audit once at startup only.
	AuditInterval time.Duration
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("settings.timezone", "UTC")
	viper.SetDefault("settings.authorization.elevated-roles", []string{string(entity.PlatformAdmin)})
	viper.SetDefault("settings.invites.max-attempts", 5)
	viper.SetDefault("settings.invites.attempts-window", "15m")
	viper.SetDefault("settings.audit-interval", "1h")
	viper.SetDefault("settings.logging.journal-size", 200)
	viper.SetDefault("settings.logging.journal-level", "warn")
	viper.SetDefault("service.database.port", 5432)
	viper.SetDefault("service.redis.port", 6379)

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}
}

func Get() *Config {
	initConfig()

	location, err := time.LoadLocation(viper.GetString("settings.timezone"))
	if err != nil {
		panic(err)
	}

	l, err := logger.Init(logger.Config{
		Debug:        viper.GetBool("settings.debug"),
		TimeLocation: location,
		LogToFile:    viper.GetBool("settings.log-to-file"),
		LogsDir:      viper.GetString("settings.logs-dir"),
	})
	if err != nil {
		panic(err)
	}

	var gormConfig *gorm.Config
	if viper.GetBool("settings.debug") {
		newLogger := gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				SlowThreshold: time.Second,
				LogLevel:      gormLogger.Info,
				Colorful:      true,
			},
		)
		gormConfig = &gorm.Config{
			Logger: newLogger,
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		}
	}

	dsn := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%d sslmode=disable TimeZone=%s",
		viper.GetString("service.database.user"),
		viper.GetString("service.database.password"),
		viper.GetString("service.database.name"),
		viper.GetString("service.database.host"),
		viper.GetInt("service.database.port"),
		location.String(),
	)

	database, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		l.Panicf("Failed to connect to the database: %v", err)
	} else {
		l.Info("Successfully connected to the database")
	}

	if err = postgresStorage.Migrate(database); err != nil {
		l.Panicf("Failed to migrate database: %v", err)
	}

	redisClient, err := redis.New(redis.Options{
		Host:           viper.GetString("service.redis.host"),
		Port:           viper.GetString("service.redis.port"),
		Password:       viper.GetString("service.redis.password"),
		DB:             viper.GetInt("service.redis.db"),
		AttemptsWindow: viper.GetDuration("settings.invites.attempts-window"),
		JournalSize:    viper.GetInt64("settings.logging.journal-size"),
	})
	if err != nil {
		l.Panicf("Failed to connect to redis: %v", err)
	} else {
		l.Info("Successfully connected to redis")
	}

	l = logger.WithHook(l, redisClient.Journal.Hook(journalLevel(l)))

	return &Config{
		Logger:   l,
		Database: database,
		Redis:    redisClient,
		Settings: loadSettings(l),
	}
}

// journalLevel is the lowest level copied into the redis log journal.
func journalLevel(l *types.Logger) zapcore.Level {
	raw := viper.GetString("settings.logging.journal-level")
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		l.Warnf("Unknown journal level %q, using warn", raw)
		return zapcore.WarnLevel
	}
	return level
}

func loadSettings(l *types.Logger) Settings {
	var elevated []entity.PlatformRole
	for _, raw := range viper.GetStringSlice("settings.authorization.elevated-roles") {
		role := entity.PlatformRole(raw)
		if !role.Valid() {
			l.Warnf("Ignoring unknown elevated platform role %q", raw)
			continue
		}
		elevated = append(elevated, role)
	}

	return Settings{
		ElevatedRoles:     elevated,
		InviteMaxAttempts: viper.GetInt64("settings.invites.max-attempts"),
		InviteLinkFormat:  viper.GetString("settings.invites.link-format"),
		AuditInterval:     viper.GetDuration("settings.audit-interval"),
	}
}
