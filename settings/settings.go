// Package settings persists per-user display settings of tables and editors in a key-value store.
package settings

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/mangoautomation/dashboard-data-apis/log"
	"github.com/mangoautomation/dashboard-data-apis/query"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
)

// Version is bumped whenever the persisted layout changes, stored settings of another version are
// ignored.
const Version = 1

var (
	settingsValidator *validator.Validate
	trans             ut.Translator
)

func init() {
	settingsValidator = validator.New()

	uni := ut.New(en.New(), en.New())
	trans, _ = uni.GetTranslator("en")

	_ = enTranslations.RegisterDefaultTranslations(settingsValidator, trans)
}

// QuerySettings is the persisted state of one table: {filters, sort, columns, advancedMode, minterms}.
type QuerySettings struct {
	Version      int               `json:"version"`
	Filters      map[string]string `json:"filters,omitempty"`
	Sort         []query.Sort      `json:"sort,omitempty" validate:"dive"`
	Columns      []string          `json:"columns,omitempty"`
	Page         int               `json:"page,omitempty" validate:"min=0"`
	PageSize     int               `json:"pageSize,omitempty" validate:"min=0,max=1000"`
	AdvancedMode bool              `json:"advancedMode,omitempty"`
	Minterms     [][]string        `json:"minterms,omitempty"`
}

// Clone returns a deep copy so callers can modify settings without affecting a shared value.
func (s QuerySettings) Clone() QuerySettings {
	c := s
	if s.Filters != nil {
		c.Filters = make(map[string]string, len(s.Filters))
		for k, v := range s.Filters {
			c.Filters[k] = v
		}
	}
	if s.Sort != nil {
		c.Sort = append([]query.Sort(nil), s.Sort...)
	}
	if s.Columns != nil {
		c.Columns = append([]string(nil), s.Columns...)
	}
	if s.Minterms != nil {
		c.Minterms = make([][]string, len(s.Minterms))
		for i, t := range s.Minterms {
			c.Minterms[i] = append([]string(nil), t...)
		}
	}
	return c
}

func (s QuerySettings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return e.TranslateValidatorError(err, trans)
	}
	return nil
}

// Store is a per-user key-value store. Values are JSON encoded, the last writer of a key wins.
type Store interface {
	// Load decodes the value saved under key into v, found is false if nothing was saved
	Load(key string, v interface{}) (found bool, err error)

	Save(key string, v interface{}) error
}

// LoadQuerySettings returns the settings saved under key, or defaults when they are absent, of
// another version or invalid. Store failures are logged and also fall back to defaults.
func LoadQuerySettings(store Store, key string, defaults QuerySettings, logger log.Logger) QuerySettings {
	defaults.Version = Version

	var loaded QuerySettings
	found, err := store.Load(key, &loaded)
	if err != nil {
		logger.Warn("unable to load settings, using defaults",
			"key", key,
			"error", err)
		return defaults.Clone()
	}
	if !found {
		return defaults.Clone()
	}
	if loaded.Version != Version {
		logger.Info("ignoring settings saved by another version",
			"key", key,
			"version", loaded.Version)
		return defaults.Clone()
	}
	if err := loaded.Validate(); err != nil {
		logger.Warn("ignoring invalid settings",
			"key", key,
			"error", err)
		return defaults.Clone()
	}
	return loaded
}

// SaveQuerySettings stamps the current version and writes the settings through to the store.
func SaveQuerySettings(store Store, key string, s QuerySettings) error {
	s.Version = Version
	return store.Save(key, s)
}
