package config

import (
	"os"

	"mailcal/internal/caldav"
	"mailcal/internal/store"
)

const defaultListenAddr = ":8080"

// Config holds everything the service reads from the environment.
type Config struct {
	LogLevel   string
	ListenAddr string
	ForwardURL string
	Store      store.Config
	CalDAV     caldav.Config
}

// FromEnv reads the configuration from environment variables.
// Missing store credentials are not an error here; store calls report them.
func FromEnv() Config {
	cfg := Config{
		LogLevel:   os.Getenv("LOG_LEVEL"),
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		ForwardURL: os.Getenv("FORWARD_URL"),
		Store: store.Config{
			BaseURL: os.Getenv("STORE_BASE_URL"),
			AppID:   os.Getenv("STORE_APP_ID"),
			APIKey:  os.Getenv("STORE_API_KEY"),
		},
		CalDAV: caldav.Config{
			Endpoint:     os.Getenv("CALDAV_URL"),
			Username:     os.Getenv("CALDAV_USERNAME"),
			Password:     os.Getenv("CALDAV_PASSWORD"),
			CalendarName: os.Getenv("CALDAV_CALENDAR_NAME"),
		},
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	return cfg
}
