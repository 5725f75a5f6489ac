package handlers

import (
	"context"
	"net/http"
	"time"

	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockOven struct {
	startErr      error
	stopErr       error
	clearErr      error
	lastProfile   string
	startCalled   int
	stopCalled    int
	clearFaultCnt int
}

func (m *mockOven) Start(ctx context.Context, name string) error {
	m.startCalled++
	m.lastProfile = name
	return m.startErr
}
func (m *mockOven) Stop(ctx context.Context) error {
	m.stopCalled++
	return m.stopErr
}
func (m *mockOven) ClearFault(ctx context.Context) error {
	m.clearFaultCnt++
	return m.clearErr
}

type mockMonitoring struct {
	state     models.OvenState
	err       error
	series    models.RunSeries
	seriesErr error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.OvenState, error) {
	return m.state, m.err
}

func (m *mockMonitoring) GetSeries(ctx context.Context) (models.RunSeries, error) {
	return m.series, m.seriesErr
}

type mockProfiles struct {
	profiles []models.ProfileInfo
}

func (m *mockProfiles) List() []models.ProfileInfo { return m.profiles }

func (m *mockProfiles) Get(name string) (models.ProfileInfo, error) {
	for _, p := range m.profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return models.ProfileInfo{}, profile.ErrUnknownProfile
}

type mockEventLog struct {
	resp      []models.OvenEvent
	err       error
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
	lastLimit int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.OvenEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastLimit = f.Limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
