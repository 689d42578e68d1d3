package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"alertmtl.app/models"
	"alertmtl.app/tests/integration/helpers"
)

const (
	// Unsubscribe test constants
	unsubscribeSuccessful = "Unsubscribed successfully"
	goodbyeEmailSubject   = "You have been unsubscribed from Alert MTL"
	tokenNotFoundError    = "no subscription found for token"
)

func (s *IntegrationTestSuite) TestUnsubscribe_Success() {
	_ = helpers.ClearEmails()

	subscriber := s.CreateTestSubscriber("leaving@example.com", true, true)
	s.CreateTestAddress(subscriber.ID, models.CityMontreal, "H2V 2L9", "H2V", "cote-rue:123401", "5455 avenue du Parc")
	s.CreateTestAddress(subscriber.ID, models.CityQuebec, "G1R 4S9", "G1R", "secteur:G1R", "")

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/unsubscribe/%s", subscriber.UnsubscribeToken), nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	s.NoError(err)
	s.Equal(unsubscribeSuccessful, response["message"])

	// The subscriber and every address row must be invisible to normal queries
	var deletedSubscriber models.Subscriber
	err = s.db.First(&deletedSubscriber, subscriber.ID).Error
	s.Error(err)

	var count int64
	err = s.db.Model(&models.Address{}).Where("subscriber_id = ?", subscriber.ID).Count(&count).Error
	s.NoError(err)
	s.Equal(int64(0), count)

	time.Sleep(2 * time.Second)
	s.AssertEmailSent("leaving@example.com", goodbyeEmailSubject)
}

func (s *IntegrationTestSuite) TestUnsubscribe_AfterSubscribeFlow() {
	_ = helpers.ClearEmails()

	formData := "email=roundtrip@example.com&postal_code=H2V+2L9"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)

	subscriber := s.AssertSubscriberExists("roundtrip@example.com")
	s.NotEmpty(subscriber.UnsubscribeToken)

	req = httptest.NewRequest("GET", fmt.Sprintf("/api/unsubscribe/%s", subscriber.UnsubscribeToken), nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var count int64
	err := s.db.Model(&models.Subscriber{}).Where("email = ?", "roundtrip@example.com").Count(&count).Error
	s.NoError(err)
	s.Equal(int64(0), count)
}

func (s *IntegrationTestSuite) TestUnsubscribe_InvalidToken() {
	req := httptest.NewRequest("GET", "/api/unsubscribe/nonexistent-token", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusNotFound, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Contains(errorResponse.Error, tokenNotFoundError)
}

func (s *IntegrationTestSuite) TestUnsubscribe_TokenReuse() {
	subscriber := s.CreateTestSubscriber("once@example.com", true, false)
	s.CreateTestAddress(subscriber.ID, models.CityMontreal, "H2V 2L9", "H2V", "cote-rue:H2V", "")

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/unsubscribe/%s", subscriber.UnsubscribeToken), nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)

	// The token died with the subscription
	req = httptest.NewRequest("GET", fmt.Sprintf("/api/unsubscribe/%s", subscriber.UnsubscribeToken), nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusNotFound, w.Code)
}
