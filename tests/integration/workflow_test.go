package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"alertmtl.app/models"
	"alertmtl.app/service"
	"alertmtl.app/tests/integration/helpers"
)

func (s *IntegrationTestSuite) TestWorkflow_SnowAlertPipeline() {
	err := helpers.ClearEmails()
	s.Require().NoError(err)

	subscriber := s.CreateTestSubscriber("plow@example.com", true, true)
	s.CreateTestAddress(subscriber.ID, models.CityMontreal, "H2V 2L9", "H2V", "cote-rue:123401", "5455 avenue du Parc")

	// Step 1: first cycle seeds the tracker, no alert yet
	s.setMockEtat(123401, "planifie")
	time.Sleep(1500 * time.Millisecond)

	stats := s.triggerSnowCheck()
	s.Equal(1, stats["montreal"].EntitiesChecked)
	s.Equal(0, stats["montreal"].StatusChanges)
	s.Equal(0, stats["montreal"].AlertsSent)

	// Step 2: the plow starts working, the transition must alert
	s.setMockEtat(123401, "en_cours")
	time.Sleep(1500 * time.Millisecond)

	stats = s.triggerSnowCheck()
	s.Equal(1, stats["montreal"].StatusChanges)
	s.Equal(1, stats["montreal"].AlertsSent)
	s.Equal(0, stats["montreal"].Errors)

	s.Require().Eventually(func() bool {
		return helpers.CheckEmailSent("plow@example.com", "URGENT: Snow Removal In Progress")
	}, 5*time.Second, 200*time.Millisecond)

	// The alert body carries the move-your-car warning and the unsubscribe link
	body, err := helpers.GetEmailContent("plow@example.com", "URGENT: Snow Removal In Progress")
	s.Require().NoError(err)
	s.Contains(body, "Move your vehicle now")
	s.Contains(body, subscriber.UnsubscribeToken)

	record := s.AssertAlertRecorded(subscriber.ID, models.AlertSnowUrgent)
	s.True(record.Delivered)
	s.Equal(time.Now().Format(models.RefDateLayout), record.RefDate)

	// Step 3: back to scheduled, a different alert kind goes out
	s.setMockEtat(123401, "planifie")
	time.Sleep(1500 * time.Millisecond)

	stats = s.triggerSnowCheck()
	s.Equal(1, stats["montreal"].StatusChanges)
	s.Equal(1, stats["montreal"].AlertsSent)

	s.Require().Eventually(func() bool {
		return helpers.CheckEmailSent("plow@example.com", "Snow Removal Scheduled")
	}, 5*time.Second, 200*time.Millisecond)

	// Step 4: the same urgent transition on the same day is suppressed
	s.setMockEtat(123401, "en_cours")
	time.Sleep(1500 * time.Millisecond)

	stats = s.triggerSnowCheck()
	s.Equal(1, stats["montreal"].StatusChanges)
	s.Equal(0, stats["montreal"].AlertsSent)
	s.Equal(1, stats["montreal"].AlertsSkipped)

	var urgentCount int64
	err = s.db.Model(&models.AlertRecord{}).
		Where("subscriber_id = ? AND kind = ?", subscriber.ID, models.AlertSnowUrgent).
		Count(&urgentCount).Error
	s.NoError(err)
	s.Equal(int64(1), urgentCount)
}

func (s *IntegrationTestSuite) TestWorkflow_QuebecAlertPipeline() {
	err := helpers.ClearEmails()
	s.Require().NoError(err)

	subscriber := s.CreateTestSubscriber("quebec@example.com", true, false)
	s.CreateTestAddress(subscriber.ID, models.CityQuebec, "G1R 4S9", "G1R", "secteur:G1R", "")

	// Seed with operations off
	s.setMockStatut("Hors service")
	time.Sleep(1500 * time.Millisecond)

	stats := s.triggerSnowCheck()
	s.Equal(1, stats["quebec"].EntitiesChecked)
	s.Equal(0, stats["quebec"].StatusChanges)

	// Operations start, subscribers along the sector get the urgent alert
	s.setMockStatut("En fonction")
	time.Sleep(1500 * time.Millisecond)

	stats = s.triggerSnowCheck()
	s.Equal(1, stats["quebec"].StatusChanges)
	s.Equal(1, stats["quebec"].AlertsSent)

	s.Require().Eventually(func() bool {
		return helpers.CheckEmailSent("quebec@example.com", "URGENT: Snow Removal In Progress")
	}, 5*time.Second, 200*time.Millisecond)

	record := s.AssertAlertRecorded(subscriber.ID, models.AlertSnowUrgent)
	s.True(record.Delivered)
}

func (s *IntegrationTestSuite) TestWorkflow_OptedOutSubscriberGetsNothing() {
	err := helpers.ClearEmails()
	s.Require().NoError(err)

	subscriber := s.CreateTestSubscriber("silent@example.com", false, true)
	s.CreateTestAddress(subscriber.ID, models.CityMontreal, "H2V 2L9", "H2V", "cote-rue:123402", "")

	s.setMockEtat(123402, "planifie")
	time.Sleep(1500 * time.Millisecond)
	s.triggerSnowCheck()

	s.setMockEtat(123402, "en_cours")
	time.Sleep(1500 * time.Millisecond)

	stats := s.triggerSnowCheck()
	s.Equal(1, stats["montreal"].StatusChanges)
	s.Equal(0, stats["montreal"].AlertsSent)

	var count int64
	err = s.db.Model(&models.AlertRecord{}).Where("subscriber_id = ?", subscriber.ID).Count(&count).Error
	s.NoError(err)
	s.Equal(int64(0), count)
}

func (s *IntegrationTestSuite) TestWorkflow_WasteReminderPipeline() {
	err := helpers.ClearEmails()
	s.Require().NoError(err)

	subscriber := s.CreateTestSubscriber("bins@example.com", false, true)
	s.CreateTestAddress(subscriber.ID, models.CityMontreal, "H2V 2L9", "H2V", "cote-rue:H2V", "5455 avenue du Parc")

	// Move the H2V timetable onto tomorrow so the reminder fires regardless
	// of the day the test runs
	location, err := time.LoadLocation("America/Toronto")
	s.Require().NoError(err)
	tomorrow := time.Now().In(location).AddDate(0, 0, 1)

	err = s.db.Model(&models.ZoneScheduleRule{}).
		Where("zone = ?", "H2V").
		Updates(map[string]interface{}{
			"garbage_weekday":   int(tomorrow.Weekday()),
			"recycling_weekday": int(tomorrow.Weekday()),
			"recycling_cadence": models.CadenceWeekly,
		}).Error
	s.Require().NoError(err)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.adminRequest("POST", "/api/admin/zones/reload"))
	s.Require().Equal(http.StatusOK, w.Code)

	// First cycle: garbage and recycling merge into one reminder email
	stats := s.triggerWasteCheck()
	s.Equal(1, stats.ZonesChecked)
	s.Equal(1, stats.RemindersSent)
	s.Equal(0, stats.Errors)

	s.Require().Eventually(func() bool {
		return helpers.CheckEmailSent("bins@example.com", "Tomorrow: Garbage, Recycling Collection")
	}, 5*time.Second, 200*time.Millisecond)

	garbageRecord := s.AssertAlertRecorded(subscriber.ID, models.AlertGarbageReminder)
	s.True(garbageRecord.Delivered)
	s.Equal(tomorrow.Format(models.RefDateLayout), garbageRecord.RefDate)

	recyclingRecord := s.AssertAlertRecorded(subscriber.ID, models.AlertRecyclingReminder)
	s.True(recyclingRecord.Delivered)

	// Second cycle on the same day: every claim is already taken
	stats = s.triggerWasteCheck()
	s.Equal(1, stats.ZonesChecked)
	s.Equal(0, stats.RemindersSent)
	s.Equal(2, stats.RemindersSkipped)
}

func (s *IntegrationTestSuite) TestWorkflow_ConcurrentSubscriptions() {
	// Concurrent subscriptions must not corrupt subscriber or address rows
	err := helpers.ClearEmails()
	s.Require().NoError(err)

	emails := []string{
		"concurrent1@example.com",
		"concurrent2@example.com",
		"concurrent3@example.com",
		"concurrent4@example.com",
		"concurrent5@example.com",
	}

	results := make(chan error, len(emails))

	for _, email := range emails {
		go func(email string) {
			formData := "email=" + email + "&postal_code=H2V+2L9"
			req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			s.router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				results <- fmt.Errorf("subscription failed for %s: status %d", email, w.Code)
				return
			}
			results <- nil
		}(email)
	}

	for i := 0; i < len(emails); i++ {
		err := <-results
		s.NoError(err)
	}

	for _, email := range emails {
		subscriber := s.AssertSubscriberExists(email)
		s.True(subscriber.Active)

		var count int64
		err := s.db.Model(&models.Address{}).Where("subscriber_id = ?", subscriber.ID).Count(&count).Error
		s.NoError(err)
		s.Equal(int64(1), count)
	}

	s.Require().Eventually(func() bool {
		for _, email := range emails {
			if !helpers.CheckEmailSent(email, "Welcome to Alert MTL") {
				return false
			}
		}
		return true
	}, 10*time.Second, 500*time.Millisecond)
}

// triggerSnowCheck runs one snow cycle for every city through the admin API
func (s *IntegrationTestSuite) triggerSnowCheck() map[string]*service.SnowCycleStats {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.adminRequest("POST", "/api/admin/trigger-snow-check"))
	s.Require().Equal(http.StatusOK, w.Code)

	var stats map[string]*service.SnowCycleStats
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &stats))
	return stats
}

// triggerWasteCheck runs one reminder cycle through the admin API
func (s *IntegrationTestSuite) triggerWasteCheck() *service.WasteCycleStats {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.adminRequest("POST", "/api/admin/trigger-waste-check"))
	s.Require().Equal(http.StatusOK, w.Code)

	var stats service.WasteCycleStats
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &stats))
	return &stats
}
