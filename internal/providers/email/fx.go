package email

import (
	"context"

	"github.com/znapsite/platform/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig builds the SMTP notifier, or a log-only fallback when SMTP
// is not configured.
func NewFromConfig(cfg config.Config, logger *zap.Logger) Notifier {
	if cfg.SMTPHost == "" {
		logger.Warn("smtp not configured, cap warnings will only be logged")
		return &logNotifier{log: logger.Named("email.log")}
	}
	return NewSMTP(Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

type logNotifier struct {
	log *zap.Logger
}

func (n *logNotifier) SendVisitCapWarning(ctx context.Context, to, businessName string, current, cap int64) error {
	n.log.Info("visit cap warning",
		zap.String("to", to),
		zap.String("business", businessName),
		zap.Int64("current", current),
		zap.Int64("cap", cap))
	return nil
}
