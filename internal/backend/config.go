package backend

import (
	"fmt"

	"nebenkosten/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	HistoryFile  string
	SQLiteDBPath string

	// Optional event feed
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType names a history store implementation.
type BackendType string

const (
	MemoryBackend BackendType = config.HistoryMemory
	FileBackend   BackendType = config.HistoryFile
	SQLiteBackend BackendType = config.HistorySQLite
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	bt := BackendType(appConfig.HistoryBackend)
	if !bt.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.HistoryBackend)
	}
	return Config{
		Type:         bt,
		HistoryFile:  appConfig.HistoryFile,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	switch c.Type {
	case FileBackend:
		if c.HistoryFile == "" {
			return fmt.Errorf("history file path is required for file backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, FileBackend, SQLiteBackend}
}
