package config

import (
	"time"

	"github.com/mangoautomation/dashboard-data-apis/log"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type ConfigMock struct {
	mock.Mock
}

func NewConfigMock() *ConfigMock {
	return &ConfigMock{}
}

func (o *ConfigMock) Default() *ConfigMock {
	o.On("BaseURL").Return("http://localhost:8080")
	o.On("User").Return("admin")
	o.On("PageSize").Return(10)
	o.On("BulkPollInterval").Return(5 * time.Millisecond)
	o.On("BulkTimeout").Return(5 * time.Second)
	o.On("SupportedActions").Return(AllActions)
	o.On("Naming").Return(NamingConvention(NewDefaultNaming(DefaultPropertyRenames)))
	o.On("Logger").Return(log.NewZapLogger(zap.NewExample()))
	return o
}

func (o *ConfigMock) BaseURL() string {
	args := o.Called()
	return args.String(0)
}

func (o *ConfigMock) User() string {
	args := o.Called()
	return args.String(0)
}

func (o *ConfigMock) PageSize() int {
	args := o.Called()
	return args.Int(0)
}

func (o *ConfigMock) BulkPollInterval() time.Duration {
	args := o.Called()
	return args.Get(0).(time.Duration)
}

func (o *ConfigMock) BulkTimeout() time.Duration {
	args := o.Called()
	return args.Get(0).(time.Duration)
}

func (o *ConfigMock) SupportedActions() Actions {
	args := o.Called()
	return args.Get(0).(Actions)
}

func (o *ConfigMock) Naming() NamingConvention {
	args := o.Called()
	return args.Get(0).(NamingConvention)
}

func (o *ConfigMock) Logger() log.Logger {
	args := o.Called()
	return args.Get(0).(log.Logger)
}
