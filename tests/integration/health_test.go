package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"alertmtl.app/models"
)

func (s *IntegrationTestSuite) TestHealth_Endpoint() {
	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	s.NoError(err)

	s.Equal("ok", response["status"])
	s.Equal(true, response["database"])
	s.Equal("memory", response["cache"])
}

func (s *IntegrationTestSuite) TestAdmin_RequiresToken() {
	req := httptest.NewRequest("GET", "/api/admin/stats", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)

	var errorResponse models.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &errorResponse)
	s.NoError(err)
	s.Equal("invalid admin token", errorResponse.Error)
}

func (s *IntegrationTestSuite) TestAdmin_RejectsWrongToken() {
	req := httptest.NewRequest("GET", "/api/admin/transitions", nil)
	req.Header.Set("X-Admin-Token", "wrong-token")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *IntegrationTestSuite) TestAdmin_Transitions() {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.adminRequest("GET", "/api/admin/transitions"))

	s.Equal(http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	s.NoError(err)
	s.Contains(response, "transitions")
	s.Contains(response, "count")
}

func (s *IntegrationTestSuite) TestAdmin_ZoneRulesReload() {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.adminRequest("POST", "/api/admin/zones/reload"))

	s.Equal(http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	s.NoError(err)
	s.Equal("Zone rules reloaded", response["message"])

	// The seeded timetable always carries at least the default zones
	count, ok := response["active_rules"].(float64)
	s.True(ok)
	s.Greater(count, float64(0))
}

func (s *IntegrationTestSuite) TestAdmin_GeobaseRefresh() {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.adminRequest("POST", "/api/admin/geobase/refresh"))

	s.Equal(http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	s.NoError(err)
	s.Equal("Geobase refreshed", response["message"])

	entries, ok := response["entries"].(float64)
	s.True(ok)
	s.Equal(float64(3), entries)
}

func (s *IntegrationTestSuite) TestAddressSearch_ReturnsSegments() {
	// Make sure the street dataset is loaded
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, s.adminRequest("POST", "/api/admin/geobase/refresh"))
	s.Equal(http.StatusOK, w.Code)

	req := httptest.NewRequest("GET", "/api/address-search?q=parc", nil)
	w = httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)

	var response struct {
		Results []models.AddressSearchResult `json:"results"`
		Count   int                          `json:"count"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	s.NoError(err)

	// The mock dataset carries both sides of avenue du Parc
	s.Equal(2, response.Count)
	for _, match := range response.Results {
		s.Contains(match.Street, "Parc")
	}
}

func (s *IntegrationTestSuite) TestAddressSearch_QueryTooShort() {
	req := httptest.NewRequest("GET", "/api/address-search?q=ab", nil)
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
}
