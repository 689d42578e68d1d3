package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"alertmtl.app/models"
)

func (s *IntegrationTestSuite) TestWasteSchedule_ByZone() {
	req := httptest.NewRequest("GET", "/api/waste-schedule?zone=H2V", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var schedule models.WasteScheduleResponse
	err := json.Unmarshal(w.Body.Bytes(), &schedule)
	s.NoError(err)

	s.Equal("montreal", schedule.City)
	s.Equal("H2V", schedule.Zone)
	s.Equal("garbage", schedule.Garbage.Kind)
	s.Equal("recycling", schedule.Recycling.Kind)
	s.NotEmpty(schedule.Garbage.Weekday)
	s.NotEmpty(schedule.Recycling.Weekday)

	// Both dates parse and fall within the coming two weeks
	garbageDate, err := time.Parse(models.RefDateLayout, schedule.Garbage.Date)
	s.NoError(err)
	recyclingDate, err := time.Parse(models.RefDateLayout, schedule.Recycling.Date)
	s.NoError(err)

	now := time.Now().UTC()
	s.True(garbageDate.After(now.AddDate(0, 0, -2)))
	s.True(garbageDate.Before(now.AddDate(0, 0, 9)))
	s.True(recyclingDate.After(now.AddDate(0, 0, -2)))
	s.True(recyclingDate.Before(now.AddDate(0, 0, 16)))
}

func (s *IntegrationTestSuite) TestWasteSchedule_ByZoneLowercase() {
	req := httptest.NewRequest("GET", "/api/waste-schedule?zone=h2v", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var schedule models.WasteScheduleResponse
	err := json.Unmarshal(w.Body.Bytes(), &schedule)
	s.NoError(err)
	s.Equal("H2V", schedule.Zone)
}

func (s *IntegrationTestSuite) TestWasteSchedule_ByPostal() {
	req := httptest.NewRequest("GET", "/api/waste-schedule?postal=G1R+4S9", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var schedule models.WasteScheduleResponse
	err := json.Unmarshal(w.Body.Bytes(), &schedule)
	s.NoError(err)

	s.Equal("quebec", schedule.City)
	s.Equal("G1R", schedule.Zone)
	s.Equal("garbage", schedule.Garbage.Kind)
}

func (s *IntegrationTestSuite) TestWasteSchedule_UnknownZone() {
	req := httptest.NewRequest("GET", "/api/waste-schedule?zone=H9X", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnprocessableEntity, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Contains(errorResponse.Error, "no collection schedule for zone")
}

func (s *IntegrationTestSuite) TestWasteSchedule_MissingParameters() {
	req := httptest.NewRequest("GET", "/api/waste-schedule", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Equal("postal or zone parameter is required", errorResponse.Error)
}

func (s *IntegrationTestSuite) TestCheck_CombinedView() {
	time.Sleep(1500 * time.Millisecond)

	req := httptest.NewRequest("GET", "/api/check?postal=H2V+2L9", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var check models.CheckResponse
	err := json.Unmarshal(w.Body.Bytes(), &check)
	s.NoError(err)

	// The combined view answers for the sortation-area default entity
	s.Equal("montreal", check.City)
	s.Equal("cote-rue:H2V", check.Snow.Entity)
	s.True(check.Snow.Available)
	s.Require().NotNil(check.Waste)
	s.Equal("H2V", check.Waste.Zone)
	s.Equal("garbage", check.Waste.Garbage.Kind)
}

func (s *IntegrationTestSuite) TestCheck_MissingPostal() {
	req := httptest.NewRequest("GET", "/api/check", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Equal("postal parameter is required", errorResponse.Error)
}
