package data

import (
	"sync"

	"gorm.io/gorm"
)

var (
	settingsCache map[string]string
	settingsMu    sync.RWMutex
)

// LoadSettings loads all active settings from the database into cache.
func LoadSettings(db *gorm.DB) error {
	var settings []Setting
	if err := db.Where("active = ?", 1).Find(&settings).Error; err != nil {
		return err
	}

	values := make(map[string]string, len(settings))
	for _, s := range settings {
		values[s.Name] = s.Value
	}
	ReplaceSettings(values)
	return nil
}

// GetSetting retrieves a setting value from cache (call LoadSettings first).
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}

// ReplaceSettings swaps the cache contents without a database.
func ReplaceSettings(values map[string]string) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	settingsCache = make(map[string]string, len(values))
	for k, v := range values {
		settingsCache[k] = v
	}
}
