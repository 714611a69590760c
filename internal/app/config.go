package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/platform/logger"
	"github.com/studybits/studybits-backend/internal/utils"
)

type Config struct {
	Mode           string
	Port           string
	JWTSecretKey   string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	ArchiveUserID  uuid.UUID
	AllowedOrigins []string
	Environment    string
	Version        string
}

func LoadConfig(log *logger.Logger) (*Config, error) {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "", log)
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("missing env var JWT_SECRET_KEY")
	}

	archiveUserID := uuid.Nil
	if raw := utils.GetEnv("ARCHIVE_USER_ID", "", log); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ARCHIVE_USER_ID: %w", err)
		}
		archiveUserID = parsed
	}

	var origins []string
	for _, origin := range strings.Split(utils.GetEnv("ALLOWED_ORIGINS", "", log), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return &Config{
		Mode:           utils.GetEnv("APP_MODE", "dev", log),
		Port:           utils.GetEnv("PORT", "8080", log),
		JWTSecretKey:   jwtSecretKey,
		AccessTTL:      time.Duration(utils.GetEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 15, log)) * time.Minute,
		RefreshTTL:     time.Duration(utils.GetEnvAsInt("REFRESH_TOKEN_TTL_HOURS", 720, log)) * time.Hour,
		ArchiveUserID:  archiveUserID,
		AllowedOrigins: origins,
		Environment:    utils.GetEnv("APP_ENV", "development", log),
		Version:        utils.GetEnv("APP_VERSION", "dev", log),
	}, nil
}
