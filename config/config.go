package config

import (
	"time"

	"github.com/mangoautomation/dashboard-data-apis/log"
)

type Config interface {
	BaseURL() string
	User() string
	PageSize() int
	BulkPollInterval() time.Duration
	BulkTimeout() time.Duration
	SupportedActions() Actions
	Naming() NamingConvention
	Logger() log.Logger
}
