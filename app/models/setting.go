package models

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings represents the runtime-tunable dispatch configuration
type AppSettings struct {
	AppName               string `json:"app_name" validate:"required,min=1,max=255"`
	MaxRetries            int    `json:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds     int    `json:"retry_delay_seconds" validate:"gte=1"`
	DispatchBatchSize     int    `json:"dispatch_batch_size" validate:"gte=1,lte=1000"`
	DispatchWorkerCount   int    `json:"dispatch_worker_count" validate:"gte=1,lte=50"`
	SendTimeoutSeconds    int    `json:"send_timeout_seconds" validate:"gte=1,lte=300"`
	CycleIntervalSeconds  int    `json:"cycle_interval_seconds" validate:"gte=10"`
	RetrySweepIntervalSec int    `json:"retry_sweep_interval_seconds" validate:"gte=10"`
	mu                    sync.RWMutex
}

// Global settings instance
var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

// GetAppSettings returns the current application settings
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return appSettings
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Initialize with defaults
	appSettings = &AppSettings{
		AppName:               "SubAlert",
		MaxRetries:            3,
		RetryDelaySeconds:     300,
		DispatchBatchSize:     100,
		DispatchWorkerCount:   5,
		SendTimeoutSeconds:    30,
		CycleIntervalSeconds:  60,
		RetrySweepIntervalSec: 60,
	}

	// Load settings from database
	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Apply loaded settings
	for _, setting := range settings {
		switch setting.Key {
		case "app_name":
			appSettings.AppName = setting.Value
		case "max_retries":
			applyIntSetting(&appSettings.MaxRetries, setting.Value)
		case "retry_delay_seconds":
			applyIntSetting(&appSettings.RetryDelaySeconds, setting.Value)
		case "dispatch_batch_size":
			applyIntSetting(&appSettings.DispatchBatchSize, setting.Value)
		case "dispatch_worker_count":
			applyIntSetting(&appSettings.DispatchWorkerCount, setting.Value)
		case "send_timeout_seconds":
			applyIntSetting(&appSettings.SendTimeoutSeconds, setting.Value)
		case "cycle_interval_seconds":
			applyIntSetting(&appSettings.CycleIntervalSeconds, setting.Value)
		case "retry_sweep_interval_seconds":
			applyIntSetting(&appSettings.RetrySweepIntervalSec, setting.Value)
		}
	}

	return nil
}

func applyIntSetting(target *int, value string) {
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
		*target = n
	}
}

// SaveSettings saves current settings to database
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Validate settings
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Convert settings to database format
	settingsMap := map[string]interface{}{
		"app_name":                     settings.AppName,
		"max_retries":                  settings.MaxRetries,
		"retry_delay_seconds":          settings.RetryDelaySeconds,
		"dispatch_batch_size":          settings.DispatchBatchSize,
		"dispatch_worker_count":        settings.DispatchWorkerCount,
		"send_timeout_seconds":         settings.SendTimeoutSeconds,
		"cycle_interval_seconds":       settings.CycleIntervalSeconds,
		"retry_sweep_interval_seconds": settings.RetrySweepIntervalSec,
	}

	// Save each setting
	for key, value := range settingsMap {
		var setting Setting
		result := db.Where("setting_key = ?", key).First(&setting)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				// Create new setting
				setting = Setting{
					Key:   key,
					Value: fmt.Sprintf("%v", value),
					Type:  getSettingType(key),
				}
				if err := db.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
			} else {
				return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
			}
		} else {
			// Update existing setting
			setting.Value = fmt.Sprintf("%v", value)
			if err := db.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
	}

	// Update global settings
	appSettings = settings
	return nil
}

// getSettingType returns the type of a setting based on its key
func getSettingType(key string) string {
	switch key {
	case "app_name":
		return "string"
	default:
		return "integer"
	}
}

// Validate validates the settings
func (s *AppSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ToJSON converts settings to JSON
func (s *AppSettings) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s)
}

// GetMaxRetries returns the retry budget for delivery attempts
func (s *AppSettings) GetMaxRetries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MaxRetries
}

// GetRetryDelay returns the backoff base delay
func (s *AppSettings) GetRetryDelay() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.RetryDelaySeconds) * time.Second
}

// GetDispatchBatchSize returns how many due reminders a cycle picks up
func (s *AppSettings) GetDispatchBatchSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DispatchBatchSize
}

// GetDispatchWorkerCount returns the size of the send worker pool
func (s *AppSettings) GetDispatchWorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DispatchWorkerCount
}

// GetSendTimeout returns the per-send timeout
func (s *AppSettings) GetSendTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.SendTimeoutSeconds) * time.Second
}

// GetCycleInterval returns how often the dispatch cycle runs
func (s *AppSettings) GetCycleInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.CycleIntervalSeconds) * time.Second
}

// GetRetrySweepInterval returns how often the retry sweep runs
func (s *AppSettings) GetRetrySweepInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.RetrySweepIntervalSec) * time.Second
}
