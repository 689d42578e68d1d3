package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"alertmtl.app/models"
	"alertmtl.app/tests/integration/helpers"
)

const (
	// Subscribe test constants
	subscriptionSuccessful   = "Subscription successful"
	welcomeEmailSubject      = "Welcome to Alert MTL"
	alreadySubscribedError   = "address already subscribed"
	invalidRequestFormat     = "invalid request format"
	unsupportedPostalMessage = "no city configured"
)

func (s *IntegrationTestSuite) TestSubscribe_Success() {
	_ = helpers.ClearEmails()

	formData := "email=test@example.com&postal_code=H2V+2L9&label=5455+avenue+du+Parc"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	s.NoError(err)
	s.Contains(response["message"], subscriptionSuccessful)

	subscriber := s.AssertSubscriberExists("test@example.com")
	s.True(subscriber.Active)
	s.True(subscriber.SnowAlerts)
	s.True(subscriber.WasteAlerts)
	s.NotEmpty(subscriber.UnsubscribeToken)

	var address models.Address
	err = s.db.Where("subscriber_id = ?", subscriber.ID).First(&address).Error
	s.NoError(err)
	s.Equal("H2V 2L9", address.PostalCode)
	s.Equal("H2V", address.Zone)
	s.Equal(models.CityMontreal, address.City)

	time.Sleep(2 * time.Second)
	s.AssertEmailSent("test@example.com", welcomeEmailSubject)
}

func (s *IntegrationTestSuite) TestSubscribe_ResolvesStreetSegment() {
	_ = helpers.ClearEmails()

	// Load the street dataset from the mock export first
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.adminRequest("POST", "/api/admin/geobase/refresh"))
	s.Equal(http.StatusOK, w.Code)

	formData := "email=street@example.com&postal_code=H2V+2L9&label=5455+avenue+du+Parc"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	subscriber := s.AssertSubscriberExists("street@example.com")

	// 5455 is odd, so the address should land on the Impair side segment
	var address models.Address
	err := s.db.Where("subscriber_id = ?", subscriber.ID).First(&address).Error
	s.NoError(err)
	s.Equal("cote-rue:123401", address.Entity)
}

func (s *IntegrationTestSuite) TestSubscribe_SortationAreaFallback() {
	_ = helpers.ClearEmails()

	// An unresolvable street must not fail the subscription
	formData := "email=fallback@example.com&postal_code=H2V+2L9&label=99999+rue+Inexistante"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	subscriber := s.AssertSubscriberExists("fallback@example.com")

	var address models.Address
	err := s.db.Where("subscriber_id = ?", subscriber.ID).First(&address).Error
	s.NoError(err)
	s.Equal("cote-rue:H2V", address.Entity)
}

func (s *IntegrationTestSuite) TestSubscribe_SecondAddressSameSubscriber() {
	_ = helpers.ClearEmails()

	formData := "email=test@example.com&postal_code=H2V+2L9"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)

	formData = "email=test@example.com&postal_code=H2J+1X8"
	req = httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)

	subscriber := s.AssertSubscriberExists("test@example.com")

	var count int64
	err := s.db.Model(&models.Address{}).Where("subscriber_id = ?", subscriber.ID).Count(&count).Error
	s.NoError(err)
	s.Equal(int64(2), count)
}

func (s *IntegrationTestSuite) TestSubscribe_DuplicateAddress() {
	formData := "email=test@example.com&postal_code=H2V+2L9"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)

	req = httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusConflict, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Equal(alreadySubscribedError, errorResponse.Error)
}

func (s *IntegrationTestSuite) TestSubscribe_UnsupportedRegion() {
	// Ottawa postal codes resolve to no registered city
	formData := "email=test@example.com&postal_code=K1A+0A6"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnprocessableEntity, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Contains(errorResponse.Error, unsupportedPostalMessage)
}

func (s *IntegrationTestSuite) TestSubscribe_MissingEmail() {
	formData := "postal_code=H2V+2L9"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Equal(invalidRequestFormat, errorResponse.Error)
}

func (s *IntegrationTestSuite) TestSubscribe_InvalidEmail() {
	formData := "email=invalid-email&postal_code=H2V+2L9"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Equal(invalidRequestFormat, errorResponse.Error)
}

func (s *IntegrationTestSuite) TestSubscribe_MissingPostalCode() {
	formData := "email=test@example.com"
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(formData))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Equal(invalidRequestFormat, errorResponse.Error)
}

func (s *IntegrationTestSuite) TestSubscribe_JSONFormat() {
	_ = helpers.ClearEmails()

	jsonData := `{"email":"json@example.com","postal_code":"G1R 4S9","waste_alerts":false}`
	req := httptest.NewRequest("POST", "/api/subscribe", strings.NewReader(jsonData))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	subscriber := s.AssertSubscriberExists("json@example.com")
	s.True(subscriber.SnowAlerts)
	s.False(subscriber.WasteAlerts)

	var address models.Address
	err := s.db.Where("subscriber_id = ?", subscriber.ID).First(&address).Error
	s.NoError(err)
	s.Equal(models.CityQuebec, address.City)
	s.Equal("secteur:G1R", address.Entity)

	time.Sleep(2 * time.Second)
	s.AssertEmailSent("json@example.com", welcomeEmailSubject)
}
