package settings

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one saved value of one user.
type Entry struct {
	Username  string `gorm:"primaryKey;size:128"`
	Key       string `gorm:"primaryKey;size:255"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "table_settings"
}

// GormStore keeps settings of every user of a workstation in one database.
type GormStore struct {
	db   *gorm.DB
	user string
}

// OpenSQLite opens (creating if needed) a sqlite settings database.
func OpenSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func NewGormStore(db *gorm.DB, user string) (*GormStore, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, user: user}, nil
}

func (s *GormStore) Load(key string, v interface{}) (bool, error) {
	var entry Entry
	err := s.db.Where(&Entry{Username: s.user, Key: key}).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(entry.Value), v)
}

func (s *GormStore) Save(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	entry := Entry{Username: s.user, Key: key, Value: string(data), UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}
