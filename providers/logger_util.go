package providers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"alertmtl.app/models"
)

// FileLoggerImpl writes provider traffic as JSON lines to a size-rotated file
type FileLoggerImpl struct {
	writer *lumberjack.Logger
	mutex  sync.Mutex
}

func NewFileLogger(logPath string) (FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	return &FileLoggerImpl{
		writer: &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		},
	}, nil
}

func (l *FileLoggerImpl) LogRequest(providerName, entity string) {
	logEntry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"provider":  providerName,
		"event":     "request",
		"entity":    entity,
	}

	l.writeLog(logEntry)
}

// LogResponse logs a successful status fetch
func (l *FileLoggerImpl) LogResponse(providerName, entity string, snapshot *models.StatusSnapshot, duration time.Duration) {
	logEntry := map[string]interface{}{
		"timestamp":   time.Now().Format(time.RFC3339),
		"provider":    providerName,
		"event":       "response",
		"entity":      entity,
		"duration_ms": duration.Milliseconds(),
		"snapshot": map[string]interface{}{
			"state":       snapshot.State,
			"observed_at": snapshot.ObservedAt.Format(time.RFC3339),
			"stale":       snapshot.Stale,
		},
	}

	l.writeLog(logEntry)
}

// LogError logs a failed status fetch
func (l *FileLoggerImpl) LogError(providerName, entity string, err error, duration time.Duration) {
	logEntry := map[string]interface{}{
		"timestamp":   time.Now().Format(time.RFC3339),
		"provider":    providerName,
		"event":       "error",
		"entity":      entity,
		"duration_ms": duration.Milliseconds(),
		"error":       err.Error(),
	}

	l.writeLog(logEntry)
}

func (l *FileLoggerImpl) writeLog(entry map[string]interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	jsonData, err := json.Marshal(entry)
	if err != nil {
		slog.Error("marshal log entry", "error", err)
		return
	}

	if _, err := l.writer.Write(append(jsonData, '\n')); err != nil {
		slog.Error("write log entry", "error", err)
	}
}
