package email

import (
	"github.com/smallbiznis/crowdspace/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	switch cfg.Email.Provider {
	case "smtp":
		log.Named("providers.email").Info("smtp email provider enabled",
			zap.String("host", cfg.Email.SMTPHost),
			zap.Int("port", cfg.Email.SMTPPort),
		)
		return NewSMTP(Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
		})
	default:
		return &NoOpProvider{}
	}
}
