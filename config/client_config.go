package config

import (
	"time"

	"github.com/mangoautomation/dashboard-data-apis/log"
)

const (
	DefaultPageSize         = 25
	DefaultBulkPollInterval = 500 * time.Millisecond
	DefaultBulkTimeout      = 5 * time.Minute
)

type ClientConfig struct {
	baseURL          string
	user             string
	pageSize         int
	pollInterval     time.Duration
	bulkTimeout      time.Duration
	supportedActions Actions
	naming           NamingConvention
	logger           log.Logger
}

func NewClientConfig(baseURL string) *ClientConfig {
	return NewClientConfigWithLogger(log.NewNopLogger(), baseURL)
}

func NewClientConfigWithLogger(logger log.Logger, baseURL string) *ClientConfig {
	return &ClientConfig{
		baseURL:          baseURL,
		pageSize:         DefaultPageSize,
		pollInterval:     DefaultBulkPollInterval,
		bulkTimeout:      DefaultBulkTimeout,
		supportedActions: AllActions,
		naming:           NewDefaultNaming(DefaultPropertyRenames),
		logger:           logger,
	}
}

func (cfg ClientConfig) BaseURL() string {
	return cfg.baseURL
}

func (cfg ClientConfig) User() string {
	return cfg.user
}

func (cfg ClientConfig) PageSize() int {
	return cfg.pageSize
}

func (cfg ClientConfig) BulkPollInterval() time.Duration {
	return cfg.pollInterval
}

func (cfg ClientConfig) BulkTimeout() time.Duration {
	return cfg.bulkTimeout
}

func (cfg ClientConfig) SupportedActions() Actions {
	return cfg.supportedActions
}

func (cfg ClientConfig) Naming() NamingConvention {
	return cfg.naming
}

func (cfg ClientConfig) Logger() log.Logger {
	return cfg.logger
}

func (cfg *ClientConfig) WithUser(user string) *ClientConfig {
	cfg.user = user
	return cfg
}

func (cfg *ClientConfig) WithPageSize(pageSize int) *ClientConfig {
	if pageSize > 0 {
		cfg.pageSize = pageSize
	}
	return cfg
}

func (cfg *ClientConfig) WithBulkPollInterval(interval time.Duration) *ClientConfig {
	if interval > 0 {
		cfg.pollInterval = interval
	}
	return cfg
}

func (cfg *ClientConfig) WithBulkTimeout(timeout time.Duration) *ClientConfig {
	if timeout > 0 {
		cfg.bulkTimeout = timeout
	}
	return cfg
}

func (cfg *ClientConfig) WithSupportedActions(actions Actions) *ClientConfig {
	cfg.supportedActions = actions
	return cfg
}

func (cfg *ClientConfig) WithNaming(naming NamingConvention) *ClientConfig {
	cfg.naming = naming
	return cfg
}
