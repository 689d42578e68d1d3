package integration

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"alertmtl.app/models"
	"alertmtl.app/providers"
)

func (s *IntegrationTestSuite) TestFileLogging_MontrealProviderIntegration() {
	s.setMockEtat(123401, "planifie")

	// Create a temporary log file for this test
	tempDir := s.T().TempDir()
	logPath := filepath.Join(tempDir, "montreal_test.log")

	fileLogger, err := providers.NewFileLogger(logPath)
	s.Require().NoError(err)

	// Wrap a fresh provider with the logging decorator, the same way the
	// provider manager assembles it
	provider := providers.NewMontrealProvider(&s.config.Montreal)
	loggedProvider := providers.NewStatusLoggerDecorator(provider, fileLogger, "PlanifNeige")

	ctx := context.Background()
	snapshot, err := loggedProvider.FetchStatus(ctx, "cote-rue:123401")
	s.Require().NoError(err)
	s.Require().NotNil(snapshot)
	s.Equal(models.StatePlanifie, snapshot.State)

	// Wait for file I/O to complete
	s.Require().Eventually(func() bool {
		content, err := os.ReadFile(logPath)
		if err != nil {
			return false
		}
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		return len(lines) >= 2
	}, 2*time.Second, 50*time.Millisecond)

	s.Require().FileExists(logPath)

	content, err := os.ReadFile(logPath)
	s.Require().NoError(err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	s.Require().GreaterOrEqual(len(lines), 2, "Should have request and response log entries")

	// Verify log structure
	for i, line := range lines {
		var logEntry map[string]interface{}
		err := json.Unmarshal([]byte(line), &logEntry)
		s.Require().NoError(err, "Log line %d should be valid JSON: %s", i, line)

		s.Contains(logEntry, "timestamp")
		s.Contains(logEntry, "provider")
		s.Contains(logEntry, "event")
		s.Contains(logEntry, "entity")

		s.Equal("PlanifNeige", logEntry["provider"])
		s.Equal("cote-rue:123401", logEntry["entity"])

		// Verify timestamp format
		timestamp, ok := logEntry["timestamp"].(string)
		s.True(ok, "Timestamp should be a string")
		_, err = time.Parse(time.RFC3339, timestamp)
		s.NoError(err, "Timestamp should be in RFC3339 format")
	}

	// Verify specific log entries
	var requestFound, responseFound bool
	for _, line := range lines {
		var logEntry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &logEntry); err != nil {
			continue
		}

		switch logEntry["event"] {
		case "request":
			requestFound = true
		case "response":
			responseFound = true
			s.Contains(logEntry, "duration_ms")

			snapshotEntry, ok := logEntry["snapshot"].(map[string]interface{})
			s.Require().True(ok, "Response entry should embed the snapshot")
			s.Equal(models.StatePlanifie, snapshotEntry["state"])
			s.Contains(snapshotEntry, "observed_at")
			s.Equal(false, snapshotEntry["stale"])
		}
	}

	s.True(requestFound, "Should find request log entry")
	s.True(responseFound, "Should find response log entry")
}

func (s *IntegrationTestSuite) TestFileLogging_QuebecProviderIntegration() {
	s.setMockStatut("En fonction")

	tempDir := s.T().TempDir()
	logPath := filepath.Join(tempDir, "quebec_test.log")

	fileLogger, err := providers.NewFileLogger(logPath)
	s.Require().NoError(err)

	provider := providers.NewQuebecProvider(&s.config.Quebec)
	loggedProvider := providers.NewStatusLoggerDecorator(provider, fileLogger, "QuebecSignals")

	ctx := context.Background()
	snapshot, err := loggedProvider.FetchStatus(ctx, "secteur:G1R")
	s.Require().NoError(err)
	s.Require().NotNil(snapshot)
	s.Equal(models.StateEnFonction, snapshot.State)

	// The Montreal test covers entry structure; here a content check is enough
	s.Require().Eventually(func() bool {
		content, err := os.ReadFile(logPath)
		if err != nil {
			return false
		}
		return strings.Contains(string(content), `"event":"request"`) &&
			strings.Contains(string(content), `"event":"response"`)
	}, 2*time.Second, 50*time.Millisecond)

	content, err := os.ReadFile(logPath)
	s.Require().NoError(err)

	s.Contains(string(content), "QuebecSignals")
	s.Contains(string(content), "secteur:G1R")
	s.Contains(string(content), models.StateEnFonction)
}

func (s *IntegrationTestSuite) TestFileLogging_ConcurrentFetches() {
	tempDir := s.T().TempDir()
	logPath := filepath.Join(tempDir, "concurrent_test.log")

	fileLogger, err := providers.NewFileLogger(logPath)
	s.Require().NoError(err)

	provider := providers.NewMontrealProvider(&s.config.Montreal)
	loggedProvider := providers.NewStatusLoggerDecorator(provider, fileLogger, "PlanifNeige")

	ctx := context.Background()

	// Warm the batch first so the concurrent fetches are served from it
	// instead of racing the refresh window
	_, err = loggedProvider.FetchStatus(ctx, "cote-rue:123401")
	s.Require().NoError(err)

	entities := []string{"cote-rue:123401", "cote-rue:123402", "cote-rue:999999"}
	results := make(chan error, len(entities))

	for _, entity := range entities {
		go func(entity string) {
			_, err := loggedProvider.FetchStatus(ctx, entity)
			results <- err
		}(entity)
	}

	for i := 0; i < len(entities); i++ {
		err := <-results
		s.NoError(err, "Concurrent fetch %d should succeed", i)
	}

	// Warm-up plus three fetches, two entries each
	s.Require().Eventually(func() bool {
		content, err := os.ReadFile(logPath)
		if err != nil {
			return false
		}
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		return len(lines) >= 8
	}, 3*time.Second, 100*time.Millisecond)

	content, err := os.ReadFile(logPath)
	s.Require().NoError(err)

	for _, entity := range entities {
		s.Contains(string(content), entity, "Should contain logs for %s", entity)
	}

	// Verify log structure is maintained under concurrent access
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	for i, line := range lines {
		var logEntry map[string]interface{}
		err := json.Unmarshal([]byte(line), &logEntry)
		s.NoError(err, "Log line %d should be valid JSON: %s", i, line)
	}
}

func (s *IntegrationTestSuite) TestFileLogging_UpstreamError() {
	tempDir := s.T().TempDir()
	logPath := filepath.Join(tempDir, "error_test.log")

	fileLogger, err := providers.NewFileLogger(logPath)
	s.Require().NoError(err)

	// Point the provider at a dead endpoint to force a fetch failure
	badConfig := s.config.Montreal
	badConfig.BaseURL = "http://localhost:9"
	badConfig.TimeoutSeconds = 1

	provider := providers.NewMontrealProvider(&badConfig)
	loggedProvider := providers.NewStatusLoggerDecorator(provider, fileLogger, "PlanifNeige")

	ctx := context.Background()
	_, err = loggedProvider.FetchStatus(ctx, "cote-rue:123401")
	s.Require().Error(err)

	// Wait for the error entry to be written
	s.Require().Eventually(func() bool {
		content, err := os.ReadFile(logPath)
		if err != nil {
			return false
		}
		return strings.Contains(string(content), `"event":"error"`)
	}, 3*time.Second, 100*time.Millisecond)

	content, err := os.ReadFile(logPath)
	s.Require().NoError(err)

	var errorEntry map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var logEntry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &logEntry); err != nil {
			continue
		}
		if logEntry["event"] == "error" {
			errorEntry = logEntry
			break
		}
	}

	s.Require().NotNil(errorEntry, "Should find error log entry")
	s.Equal("PlanifNeige", errorEntry["provider"])
	s.Equal("cote-rue:123401", errorEntry["entity"])
	s.Contains(errorEntry, "duration_ms")
	s.Contains(errorEntry["error"], "failed to fetch planifications")
}

func (s *IntegrationTestSuite) TestFileLogging_ManagerConfiguration() {
	s.setMockEtat(123402, "deneige")

	tempDir := s.T().TempDir()
	logPath := filepath.Join(tempDir, "manager_test.log")

	manager, err := providers.NewProviderManagerBuilder().
		WithMontreal(&s.config.Montreal).
		WithLogFilePath(logPath).
		WithLoggingEnabled(true).
		WithCacheEnabled(false).
		Build()
	s.Require().NoError(err)

	info := manager.GetProviderInfo()
	s.Require().NotNil(info)
	s.Equal(true, info["logging_enabled"])
	s.Contains(info, "cities")

	ctx := context.Background()
	snapshot, err := manager.Status(ctx, models.CityMontreal, "cote-rue:123402")
	s.Require().NoError(err)
	s.Require().NotNil(snapshot)

	// The manager wires its own decorator around the provider
	s.Require().Eventually(func() bool {
		content, err := os.ReadFile(logPath)
		if err != nil {
			return false
		}
		return strings.Contains(string(content), "PlanifNeige") &&
			strings.Contains(string(content), `"event":"response"`)
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *IntegrationTestSuite) TestFileLogging_LoggerEvents() {
	tempDir := s.T().TempDir()
	logPath := filepath.Join(tempDir, "events_test.log")

	fileLogger, err := providers.NewFileLogger(logPath)
	s.Require().NoError(err)

	snapshot := &models.StatusSnapshot{
		Entity:     "cote-rue:123401",
		City:       models.CityMontreal,
		State:      models.StateEnCours,
		ObservedAt: time.Now(),
		FetchedAt:  time.Now(),
	}

	fileLogger.LogRequest("PlanifNeige", "cote-rue:123401")
	fileLogger.LogResponse("PlanifNeige", "cote-rue:123401", snapshot, 25*time.Millisecond)
	fileLogger.LogError("PlanifNeige", "cote-rue:123401", errors.New("connection reset"), 40*time.Millisecond)

	s.Require().Eventually(func() bool {
		content, err := os.ReadFile(logPath)
		if err != nil {
			return false
		}
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		return len(lines) >= 3
	}, 2*time.Second, 50*time.Millisecond)

	content, err := os.ReadFile(logPath)
	s.Require().NoError(err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	s.Equal(3, len(lines))

	// Entries keep call order under the writer mutex
	events := []string{"request", "response", "error"}
	for i, line := range lines {
		var logEntry map[string]interface{}
		err := json.Unmarshal([]byte(line), &logEntry)
		s.Require().NoError(err)

		s.Equal(events[i], logEntry["event"])
		s.Equal("PlanifNeige", logEntry["provider"])
		s.Equal("cote-rue:123401", logEntry["entity"])
	}

	s.Contains(lines[1], models.StateEnCours)
	s.Contains(lines[2], "connection reset")
}
