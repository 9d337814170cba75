package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// NotificationConfig controls how invitation e-mails are rendered.
type NotificationConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	SubjectPattern string `mapstructure:"subjectPattern"`
	SenderName     string `mapstructure:"senderName"`
	AcceptURL      string `mapstructure:"acceptURL"`
}

func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		Enabled:        true,
		SubjectPattern: "You're invited to join %s",
		SenderName:     "Crowdspace",
		AcceptURL:      "http://localhost:3000/invitations",
	}
}

type NotificationConfigHolder struct {
	current atomic.Value // holds NotificationConfig
}

// NewStaticNotificationConfigHolder returns a holder that never reloads.
func NewStaticNotificationConfigHolder(cfg NotificationConfig) *NotificationConfigHolder {
	holder := &NotificationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewNotificationConfigHolder() (*NotificationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("notification")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/crowdspace")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CROWDSPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultNotificationConfig()
	v.SetDefault("notification.enabled", defaults.Enabled)
	v.SetDefault("notification.subjectPattern", defaults.SubjectPattern)
	v.SetDefault("notification.senderName", defaults.SenderName)
	v.SetDefault("notification.acceptURL", defaults.AcceptURL)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	var cfg NotificationConfig
	if err := v.UnmarshalKey("notification", &cfg); err != nil {
		return nil, err
	}
	if err := validateNotificationConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticNotificationConfigHolder(cfg)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated NotificationConfig
		if err := v.UnmarshalKey("notification", &updated); err != nil {
			log.Printf("[notification-config] reload failed: %v", err)
			return
		}
		if err := validateNotificationConfig(updated); err != nil {
			log.Printf("[notification-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[notification-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *NotificationConfigHolder) Get() NotificationConfig {
	if h == nil {
		return DefaultNotificationConfig()
	}
	return h.current.Load().(NotificationConfig)
}

func validateNotificationConfig(cfg NotificationConfig) error {
	if !strings.Contains(cfg.SubjectPattern, "%s") {
		return errors.New("notification.subjectPattern must contain %s for the organization name")
	}
	return nil
}
