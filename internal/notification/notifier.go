// Package notification delivers invitation notices to invitees.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/crowdspace/internal/config"
	"github.com/smallbiznis/crowdspace/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const inviteTemplate = "invite_member"

var Module = fx.Module("notification",
	fx.Provide(NewEmailNotifier),
)

// Notifier tells an invitee that an organization invited them.
type Notifier interface {
	Notify(ctx context.Context, email string, organizationName string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Provider email.Provider
	Config   *config.NotificationConfigHolder
}

// EmailNotifier renders the invite template and hands it to the e-mail provider.
type EmailNotifier struct {
	log      *zap.Logger
	provider email.Provider
	config   *config.NotificationConfigHolder
}

func NewEmailNotifier(p Params) Notifier {
	return &EmailNotifier{
		log:      p.Log.Named("notification.email"),
		provider: p.Provider,
		config:   p.Config,
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, recipient string, organizationName string) error {
	cfg := n.config.Get()
	if !cfg.Enabled {
		n.log.Debug("invitation notifications disabled", zap.String("organization", organizationName))
		return nil
	}

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return email.ErrNoRecipients
	}

	data := map[string]any{
		"subject":     fmt.Sprintf(cfg.SubjectPattern, organizationName),
		"org_name":    organizationName,
		"sender_name": cfg.SenderName,
		"accept_url":  cfg.AcceptURL,
		"role":        roleFromContext(ctx),
	}
	if err := n.provider.SendTemplate(ctx, []string{recipient}, inviteTemplate, data); err != nil {
		return fmt.Errorf("send invitation e-mail: %w", err)
	}
	return nil
}

type roleKey struct{}

// WithRole attaches the invited role so the template can mention it.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func roleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey{}).(string); ok && v != "" {
		return v
	}
	return "MEMBER"
}
