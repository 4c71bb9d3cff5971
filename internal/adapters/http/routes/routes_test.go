package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bloodbank/internal/adapters/http/middleware"
	"bloodbank/internal/config"
	"bloodbank/internal/core/services"
	"bloodbank/internal/pkg/clock"
	"bloodbank/internal/pkg/password"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type RoutesSuite struct {
	suite.Suite
	app       *fiber.App
	container *Container
	clock     *clock.Fake
	token     string
}

func TestRoutesSuite(t *testing.T) {
	suite.Run(t, new(RoutesSuite))
}

func (s *RoutesSuite) SetupSuite() {
	password.Cost = bcrypt.MinCost
}

func (s *RoutesSuite) SetupTest() {
	cfg := &config.Config{
		AppMode:       "dev",
		Port:          "0",
		StorageDriver: config.StorageMemory,
		JWT: config.JWTConfig{
			Secret:          "test-secret",
			RefreshSecret:   "test-refresh-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Inventory: config.InventoryConfig{
			ReservationHold: 2 * time.Hour,
			ReaperInterval:  time.Minute,
			DonorDeferral:   56 * 24 * time.Hour,
			ExpiringSoon:    3 * 24 * time.Hour,
		},
	}
	logger := zaptest.NewLogger(s.T())
	registry := prometheus.NewRegistry()
	s.clock = clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	s.container = NewContainer(cfg, Infra{Logger: logger, Registry: registry, Clock: s.clock})
	s.app = fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	middleware.Setup(s.app, cfg, logger)
	Setup(s.app, s.container, cfg, registry, logger)

	_, err := s.container.Staff.Create(context.Background(), &services.CreateStaffInput{
		Username: "nurse",
		FullName: "Duty Nurse",
		Password: "correct-horse",
		Role:     "STAFF",
	})
	s.Require().NoError(err)
	s.token = s.login("nurse", "correct-horse")
}

func (s *RoutesSuite) do(method, path string, body interface{}, token string) (int, envelope) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 && raw[0] == '{' {
		s.Require().NoError(json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func (s *RoutesSuite) login(username, pass string) string {
	code, env := s.do(http.MethodPost, "/api/v1/auth/login", fiber.Map{"username": username, "password": pass}, "")
	s.Require().Equal(http.StatusOK, code, env.Error)

	var data struct {
		AccessToken string `json:"access_token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &data))
	s.Require().NotEmpty(data.AccessToken)
	return data.AccessToken
}

func (s *RoutesSuite) registerDonor(bloodType string) string {
	code, env := s.do(http.MethodPost, "/api/v1/donors", fiber.Map{
		"full_name":  "Test Donor " + bloodType,
		"blood_type": bloodType,
	}, s.token)
	s.Require().Equal(http.StatusCreated, code, env.Error)

	var donor struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &donor))
	return donor.ID
}

func (s *RoutesSuite) collect(donorID, date string) {
	code, env := s.do(http.MethodPost, "/api/v1/donors/"+donorID+"/collections", fiber.Map{
		"donation_date":    date,
		"volume_ml":        450,
		"component_type":   "whole_blood",
		"storage_location": "FRIDGE-A",
	}, s.token)
	s.Require().Equal(http.StatusCreated, code, env.Error)
}

func (s *RoutesSuite) TestHealthAndMetricsArePublic() {
	code, _ := s.do(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RoutesSuite) TestProtectedRoutesNeedToken() {
	code, _ := s.do(http.MethodGet, "/api/v1/units", nil, "")
	s.Equal(http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/v1/units", nil, "not-a-jwt")
	s.Equal(http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/v1/units", nil, s.token)
	s.Equal(http.StatusOK, code)
}

func (s *RoutesSuite) TestStaffCannotReachAdminRoutes() {
	code, _ := s.do(http.MethodPost, "/api/v1/inventory/sweep", nil, s.token)
	s.Equal(http.StatusForbidden, code)

	code, _ = s.do(http.MethodGet, "/api/v1/staff", nil, s.token)
	s.Equal(http.StatusForbidden, code)
}

func (s *RoutesSuite) TestWrongPasswordIsUnauthorized() {
	code, env := s.do(http.MethodPost, "/api/v1/auth/login", fiber.Map{"username": "nurse", "password": "wrong-horse"}, "")
	s.Equal(http.StatusUnauthorized, code)
	s.False(env.Success)
}

func (s *RoutesSuite) TestShelfLifeReference() {
	code, env := s.do(http.MethodGet, "/api/v1/reference/shelf-life", nil, "")
	s.Require().Equal(http.StatusOK, code)

	var policies []map[string]interface{}
	s.Require().NoError(json.Unmarshal(env.Data, &policies))
	s.Len(policies, 4)
}

func (s *RoutesSuite) TestUnknownComponentIsBadRequest() {
	donorID := s.registerDonor("O+")
	code, env := s.do(http.MethodPost, "/api/v1/units", fiber.Map{
		"donor_id":         donorID,
		"blood_type":       "O+",
		"component_type":   "cryo",
		"volume_ml":        450,
		"collection_date":  "2024-05-30",
		"storage_location": "FRIDGE-A",
	}, s.token)
	s.Equal(http.StatusBadRequest, code)
	s.Equal("unknown_component_type", env.Code)
}

func (s *RoutesSuite) TestIneligibleDonorIsConflict() {
	donorID := s.registerDonor("A-")
	s.collect(donorID, "2024-05-30")

	code, env := s.do(http.MethodPost, "/api/v1/donors/"+donorID+"/donations", fiber.Map{
		"donation_date": "2024-06-01",
		"volume_ml":     450,
	}, s.token)
	s.Equal(http.StatusConflict, code)
	s.Equal("donor_ineligible", env.Code)
}

func (s *RoutesSuite) TestShortageReportsAvailableCount() {
	s.collect(s.registerDonor("O+"), "2024-05-30")

	code, env := s.do(http.MethodPost, "/api/v1/reservations", fiber.Map{
		"request_id":     "REQ-1",
		"blood_type":     "O+",
		"component_type": "whole_blood",
		"units_needed":   2,
	}, s.token)
	s.Require().Equal(http.StatusConflict, code)
	s.Equal("insufficient_stock", env.Code)

	var shortage struct {
		Available int `json:"available"`
		Requested int `json:"requested"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &shortage))
	s.Equal(1, shortage.Available)
	s.Equal(2, shortage.Requested)
}

func (s *RoutesSuite) TestCommitIsSingleUse() {
	s.collect(s.registerDonor("B+"), "2024-05-29")

	code, env := s.do(http.MethodPost, "/api/v1/reservations", fiber.Map{
		"request_id":   "REQ-2",
		"blood_type":   "B+",
		"units_needed": 1,
	}, s.token)
	s.Require().Equal(http.StatusCreated, code, env.Error)

	code, _ = s.do(http.MethodPost, "/api/v1/reservations/REQ-2/commit", nil, s.token)
	s.Equal(http.StatusOK, code)

	code, env = s.do(http.MethodPost, "/api/v1/reservations/REQ-2/commit", nil, s.token)
	s.Equal(http.StatusNotFound, code)
	s.Equal("not_found", env.Code)

	code, _ = s.do(http.MethodPost, "/api/v1/reservations/REQ-2/release", nil, s.token)
	s.Equal(http.StatusNotFound, code)
}

func (s *RoutesSuite) TestManualTransitionRejectsIllegalMove() {
	s.collect(s.registerDonor("AB+"), "2024-05-30")
	unit := s.firstUnit()

	code, env := s.do(http.MethodPatch, "/api/v1/units/"+unit+"/status", fiber.Map{"status": "used"}, s.token)
	s.Equal(http.StatusConflict, code)
	s.Equal("invalid_transition", env.Code)

	code, _ = s.do(http.MethodPost, "/api/v1/units/"+unit+"/discard", nil, s.token)
	s.Equal(http.StatusOK, code)
}

func (s *RoutesSuite) firstUnit() string {
	code, env := s.do(http.MethodGet, "/api/v1/units?limit=1", nil, s.token)
	s.Require().Equal(http.StatusOK, code)

	var units []struct {
		UnitNumber string `json:"unit_number"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &units))
	s.Require().Len(units, 1)
	return units[0].UnitNumber
}

func TestContainerPingWithoutChecks(t *testing.T) {
	cfg := &config.Config{
		StorageDriver: config.StorageMemory,
		Inventory:     config.InventoryConfig{ReservationHold: time.Hour},
	}
	c := NewContainer(cfg, Infra{})
	require.Empty(t, c.Checks)
	require.NoError(t, c.Ping(context.Background()))
}
