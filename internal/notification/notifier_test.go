package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/crowdspace/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sentTemplate struct {
	to       []string
	template string
	data     map[string]any
}

type fakeProvider struct {
	sent []sentTemplate
	err  error
}

func (f *fakeProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return f.err
}

func (f *fakeProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	f.sent = append(f.sent, sentTemplate{to: to, template: templateName, data: data})
	return f.err
}

func newNotifier(t *testing.T, provider *fakeProvider, cfg config.NotificationConfig) Notifier {
	return NewEmailNotifier(Params{
		Log:      zaptest.NewLogger(t),
		Provider: provider,
		Config:   config.NewStaticNotificationConfigHolder(cfg),
	})
}

func TestNotifyRendersSubjectFromConfig(t *testing.T) {
	provider := &fakeProvider{}
	cfg := config.DefaultNotificationConfig()
	cfg.SubjectPattern = "Join %s on Crowdspace"
	n := newNotifier(t, provider, cfg)

	ctx := WithRole(context.Background(), "ADMIN")
	require.NoError(t, n.Notify(ctx, " bob@example.com ", "Acme"))

	require.Len(t, provider.sent, 1)
	sent := provider.sent[0]
	assert.Equal(t, []string{"bob@example.com"}, sent.to)
	assert.Equal(t, inviteTemplate, sent.template)
	assert.Equal(t, "Join Acme on Crowdspace", sent.data["subject"])
	assert.Equal(t, "ADMIN", sent.data["role"])
}

func TestNotifyDisabledSkipsProvider(t *testing.T) {
	provider := &fakeProvider{}
	cfg := config.DefaultNotificationConfig()
	cfg.Enabled = false
	n := newNotifier(t, provider, cfg)

	require.NoError(t, n.Notify(context.Background(), "bob@example.com", "Acme"))
	assert.Empty(t, provider.sent)
}

func TestNotifyWrapsProviderError(t *testing.T) {
	boom := errors.New("smtp down")
	provider := &fakeProvider{err: boom}
	n := newNotifier(t, provider, config.DefaultNotificationConfig())

	err := n.Notify(context.Background(), "bob@example.com", "Acme")
	assert.ErrorIs(t, err, boom)
}
