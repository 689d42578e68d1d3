package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"alertmtl.app/models"
)

func (s *IntegrationTestSuite) TestSnowStatus_MontrealEntity() {
	s.setMockEtat(123401, "planifie")
	time.Sleep(1500 * time.Millisecond)

	req := httptest.NewRequest("GET", "/api/snow-status?city=montreal&entity=cote-rue:123401", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var status models.SnowStatusResponse
	err := json.Unmarshal(w.Body.Bytes(), &status)
	s.NoError(err)

	s.Equal("montreal", status.City)
	s.Equal("cote-rue:123401", status.Entity)
	s.True(status.Available)
	s.Equal("planifie", status.State)
	s.Equal("Scheduled", status.Label)
	s.Equal("orange", status.Color)
	s.False(status.Stale)
	s.NotNil(status.ParkingAllowed)
	s.False(*status.ParkingAllowed)
	s.NotNil(status.WindowStart)
	s.NotNil(status.WindowEnd)
}

func (s *IntegrationTestSuite) TestSnowStatus_QuebecPostal() {
	s.setMockStatut("En fonction")
	time.Sleep(1500 * time.Millisecond)

	req := httptest.NewRequest("GET", "/api/snow-status?postal=G1R+4S9", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var status models.SnowStatusResponse
	err := json.Unmarshal(w.Body.Bytes(), &status)
	s.NoError(err)

	s.Equal("quebec", status.City)
	s.Equal("secteur:G1R", status.Entity)
	s.True(status.Available)
	s.Equal("en_fonction", status.State)
	s.Equal("Active", status.Label)
	s.Equal("red", status.Color)
	s.NotNil(status.ParkingAllowed)
	s.False(*status.ParkingAllowed)
}

func (s *IntegrationTestSuite) TestSnowStatus_UnknownEntity() {
	// The batch feed only lists streets with activity, so an absent street
	// side reports unknown rather than an error
	time.Sleep(1500 * time.Millisecond)

	req := httptest.NewRequest("GET", "/api/snow-status?city=montreal&entity=cote-rue:999999", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var status models.SnowStatusResponse
	err := json.Unmarshal(w.Body.Bytes(), &status)
	s.NoError(err)

	s.True(status.Available)
	s.Equal("unknown", status.State)
	s.Equal("no snow-removal activity reported for this street", status.Message)
	s.Nil(status.ParkingAllowed)
}

func (s *IntegrationTestSuite) TestSnowStatus_StaleFallback() {
	defer s.setMockOutage(false)

	// Warm the cache, then break the upstream inside the stale window
	s.setMockEtat(123401, "planifie")
	time.Sleep(1500 * time.Millisecond)

	req := httptest.NewRequest("GET", "/api/snow-status?city=montreal&entity=cote-rue:123401", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)

	s.setMockOutage(true)
	time.Sleep(1500 * time.Millisecond)

	req = httptest.NewRequest("GET", "/api/snow-status?city=montreal&entity=cote-rue:123401", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var status models.SnowStatusResponse
	err := json.Unmarshal(w.Body.Bytes(), &status)
	s.NoError(err)

	s.True(status.Available)
	s.Equal("planifie", status.State)
	s.True(status.Stale)
}

func (s *IntegrationTestSuite) TestSnowStatus_ProviderOutage() {
	defer s.setMockOutage(false)

	// Let any cached snapshot age past the stale ceiling before asking again
	s.setMockOutage(true)
	time.Sleep(3500 * time.Millisecond)

	req := httptest.NewRequest("GET", "/api/snow-status?city=montreal&entity=cote-rue:123401", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	// Upstream failures degrade to an unavailable answer, never a 5xx
	s.Equal(http.StatusOK, w.Code)

	var status models.SnowStatusResponse
	err := json.Unmarshal(w.Body.Bytes(), &status)
	s.NoError(err)

	s.False(status.Available)
	s.Equal("status temporarily unavailable", status.Message)
	s.Empty(status.State)
}

func (s *IntegrationTestSuite) TestSnowStatus_MissingParameters() {
	req := httptest.NewRequest("GET", "/api/snow-status", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Equal("postal or entity parameter is required", errorResponse.Error)
}

func (s *IntegrationTestSuite) TestSnowStatus_UnsupportedRegion() {
	req := httptest.NewRequest("GET", "/api/snow-status?postal=K1A+0A6", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnprocessableEntity, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Contains(errorResponse.Error, "no city configured")
}
