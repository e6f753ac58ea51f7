package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/abc-portal/internship-credits/internal/config"
	"github.com/abc-portal/internship-credits/internal/database"
)

const adminPassword = "admin-test-pass"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta json.RawMessage `json:"meta"`
}

type apiSuite struct {
	suite.Suite
	engine   *gin.Engine
	cleanup  func()
	registry *httptest.Server
	pushes   int32
	failing  atomic.Bool

	company, otherCompany, student, institute, admin string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(apiSuite))
}

func (s *apiSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	t := s.T()

	s.pushes = 0
	s.failing.Store(false)
	s.registry = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"maintenance"}`))
			return
		}
		n := atomic.AddInt32(&s.pushes, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"receipt":"APAAR-%04d"}`, n)
	}))

	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))
	require.NoError(t, database.SeedInitialData(db, adminPassword))

	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "router-test-secret", AccessTokenTTL: 1},
		Storage:     config.StorageConfig{LocalDir: t.TempDir(), MaxUploadBytes: 1 << 20},
		Registry:    config.RegistryConfig{BaseURL: s.registry.URL, Timeout: 2 * time.Second},
		RateLimit:   config.RateLimitConfig{Enabled: false},
		I18n:        config.I18nConfig{DefaultLocale: "en"},
	}
	s.engine, s.cleanup, err = Initialize(db, cfg)
	require.NoError(t, err)

	s.company = s.register("acme_hr", "company", "")
	s.otherCompany = s.register("globex_hr", "company", "")
	s.student = s.register("asha", "student", "Government College of Engineering")
	s.institute = s.register("gce_office", "institute", "Government College of Engineering")
	s.admin = s.login("admin", adminPassword)

	t.Cleanup(func() { database.Close(db) })
}

func (s *apiSuite) TearDownTest() {
	s.cleanup()
	s.registry.Close()
}

func (s *apiSuite) call(method, path, token string, body interface{}) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (s *apiSuite) decode(env envelope, out interface{}) {
	s.Require().NoError(json.Unmarshal(env.Data, out))
}

func (s *apiSuite) register(username, role, institute string) string {
	body := map[string]string{
		"username":       username,
		"email":          username + "@example.org",
		"password":       "password123",
		"role":           role,
		"institute_name": institute,
	}
	if role == "student" {
		body["registry_id"] = "APAAR-" + username
	}
	code, env := s.call("POST", "/auth/register", "", body)
	s.Require().Equal(http.StatusCreated, code, env.Error)
	var auth struct {
		Token string `json:"token"`
	}
	s.decode(env, &auth)
	return auth.Token
}

func (s *apiSuite) login(username, password string) string {
	code, env := s.call("POST", "/auth/login", "", map[string]string{"login": username, "password": password})
	s.Require().Equal(http.StatusOK, code)
	var auth struct {
		Token string `json:"token"`
	}
	s.decode(env, &auth)
	return auth.Token
}

func (s *apiSuite) postInternship(token, title, policy string) string {
	code, env := s.call("POST", "/internships", token, map[string]interface{}{
		"title":          title,
		"policy":         policy,
		"expected_hours": 120,
	})
	s.Require().Equal(http.StatusCreated, code, env.Error)
	var internship struct {
		ID string `json:"id"`
	}
	s.decode(env, &internship)
	return internship.ID
}

func (s *apiSuite) applyTo(internshipID string) string {
	code, env := s.call("POST", "/apply/"+internshipID, s.student, nil)
	s.Require().Equal(http.StatusCreated, code, env.Error)
	var app struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.decode(env, &app)
	s.Equal("applied", app.Status)
	return app.ID
}

type applicationView struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	HoursWorked    *float64 `json:"hours_worked"`
	CreditsAwarded *float64 `json:"credits_awarded"`
	Reason         *string  `json:"reason"`
}

func (s *apiSuite) transition(token, appID, action string, body interface{}) (int, applicationView, envelope) {
	code, env := s.call("POST", "/application/"+appID+"/"+action, token, body)
	var app applicationView
	if code == http.StatusOK {
		s.decode(env, &app)
	}
	return code, app, env
}

func (s *apiSuite) TestHealth() {
	code, _ := s.call("GET", "/health", "", nil)
	s.Equal(http.StatusOK, code)
}

func (s *apiSuite) TestFullLifecycle() {
	internshipID := s.postInternship(s.company, "Backend Intern", "UGC")
	appID := s.applyTo(internshipID)

	code, app, _ := s.transition(s.company, appID, "accept", nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("accepted", app.Status)

	code, app, _ = s.transition(s.company, appID, "complete", map[string]float64{"hours": 90})
	s.Require().Equal(http.StatusOK, code)
	s.Equal("institute_review", app.Status)
	s.Require().NotNil(app.CreditsAwarded)
	s.Equal(3.0, *app.CreditsAwarded)

	code, app, _ = s.transition(s.institute, appID, "approve-credits", nil)
	s.Require().Equal(http.StatusOK, code)
	s.Equal("completed", app.Status)

	code, env := s.call("GET", "/credits/summary", s.student, nil)
	s.Require().Equal(http.StatusOK, code)
	var summary struct {
		ApprovedCredits float64 `json:"approved_credits"`
		ApprovedHours   float64 `json:"approved_hours"`
	}
	s.decode(env, &summary)
	s.Equal(3.0, summary.ApprovedCredits)
	s.Equal(90.0, summary.ApprovedHours)

	code, env = s.call("POST", "/application/"+appID+"/push-to-registry", s.institute, nil)
	s.Require().Equal(http.StatusOK, code, env.Error)
	var record struct {
		Pushed  bool   `json:"is_pushed_to_external_registry"`
		Receipt string `json:"registry_receipt"`
	}
	s.decode(env, &record)
	s.True(record.Pushed)
	s.Equal("APAAR-0001", record.Receipt)

	code, env = s.call("POST", "/application/"+appID+"/push-to-registry", s.institute, nil)
	s.Equal(http.StatusConflict, code)
	s.Equal("INVALID_TRANSITION", env.Error.Code)
	s.EqualValues(1, atomic.LoadInt32(&s.pushes))

	// A terminal application accepts no further events.
	code, _, env = s.transition(s.company, appID, "reject", map[string]string{"reason": "late"})
	s.Equal(http.StatusConflict, code)
	s.Equal("INVALID_TRANSITION", env.Error.Code)
}

func (s *apiSuite) TestRoleAndOwnershipGuards() {
	internshipID := s.postInternship(s.company, "Data Intern", "AICTE")
	appID := s.applyTo(internshipID)

	code, _, env := s.transition(s.otherCompany, appID, "accept", nil)
	s.Equal(http.StatusForbidden, code)
	s.Equal("FORBIDDEN", env.Error.Code)

	code, _, _ = s.transition(s.student, appID, "accept", nil)
	s.Equal(http.StatusForbidden, code)

	code, _, _ = s.transition(s.admin, appID, "accept", nil)
	s.Equal(http.StatusForbidden, code)

	code, _, _ = s.transition(s.institute, appID, "approve-credits", nil)
	s.Equal(http.StatusConflict, code)

	code, _ = s.call("GET", "/applications", "", nil)
	s.Equal(http.StatusUnauthorized, code)

	code, _ = s.call("POST", "/application/not-a-uuid/accept", s.company, nil)
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.call("POST", "/apply/"+internshipID, s.student, nil)
	s.Equal(http.StatusConflict, code)
}

func (s *apiSuite) TestInstituteSignupCannotJoinClaimedInstitute() {
	internshipID := s.postInternship(s.company, "Infra Intern", "UGC")
	appID := s.applyTo(internshipID)
	_, _, _ = s.transition(s.company, appID, "accept", nil)
	code, _, _ := s.transition(s.company, appID, "complete", map[string]float64{"hours": 90})
	s.Require().Equal(http.StatusOK, code)

	code, env := s.call("POST", "/auth/register", "", map[string]string{
		"username":       "mallory",
		"email":          "mallory@example.org",
		"password":       "password123",
		"role":           "institute",
		"institute_name": "government college of engineering",
	})
	s.Equal(http.StatusConflict, code)
	s.Require().NotNil(env.Error)
	s.Equal("CONFLICT", env.Error.Code)

	code, _ = s.call("POST", "/auth/login", "", map[string]string{"login": "mallory", "password": "password123"})
	s.Equal(http.StatusUnauthorized, code)

	code, env = s.call("GET", "/application/"+appID, s.institute, nil)
	s.Require().Equal(http.StatusOK, code)
	var app applicationView
	s.decode(env, &app)
	s.Equal("institute_review", app.Status)
}

func (s *apiSuite) uploadProof(token, appID string, body []byte) int {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "certificate.pdf")
	s.Require().NoError(err)
	_, err = part.Write(body)
	s.Require().NoError(err)
	s.Require().NoError(form.Close())

	req := httptest.NewRequest("POST", "/application/"+appID+"/proof", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w.Code
}

func (s *apiSuite) download(token, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *apiSuite) TestProofDownloadIsAuthenticated() {
	internshipID := s.postInternship(s.company, "Docs Intern", "UGC")
	appID := s.applyTo(internshipID)
	_, _, _ = s.transition(s.company, appID, "accept", nil)

	code, _ := s.call("GET", "/application/"+appID+"/proof", s.institute, nil)
	s.Equal(http.StatusNotFound, code)

	pdf := []byte("%PDF-1.4 completion certificate")
	s.Require().Equal(http.StatusOK, s.uploadProof(s.company, appID, pdf))

	code, env := s.call("GET", "/application/"+appID+"/proof", s.institute, nil)
	s.Require().Equal(http.StatusOK, code)
	var link struct {
		URL string `json:"url"`
	}
	s.decode(env, &link)
	s.Equal("/application/"+appID+"/proof/file", link.URL)

	w := s.download(s.institute, link.URL)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(pdf, w.Body.Bytes())
	s.Contains(w.Header().Get("Content-Disposition"), "attachment")

	s.Equal(http.StatusUnauthorized, s.download("", link.URL).Code)
	s.Equal(http.StatusForbidden, s.download(s.otherCompany, link.URL).Code)

	var app struct {
		ProofKey string `json:"proof_key"`
	}
	code, env = s.call("GET", "/application/"+appID, s.company, nil)
	s.Require().Equal(http.StatusOK, code)
	s.decode(env, &app)
	s.Require().NotEmpty(app.ProofKey)
	s.Equal(http.StatusNotFound, s.download("", "/uploads/"+app.ProofKey).Code)
}

func (s *apiSuite) TestReasonAndHoursValidation() {
	internshipID := s.postInternship(s.company, "Ops Intern", "UGC")
	appID := s.applyTo(internshipID)

	code, _, env := s.transition(s.company, appID, "reject", map[string]string{"reason": "   "})
	s.Equal(http.StatusBadRequest, code)
	s.NotNil(env.Error)

	code, _, _ = s.transition(s.company, appID, "accept", nil)
	s.Require().Equal(http.StatusOK, code)

	code, _, env = s.transition(s.company, appID, "complete", map[string]float64{"hours": -5})
	s.Equal(http.StatusBadRequest, code)
	s.Equal("INVALID_HOURS", env.Error.Code)

	code, _ = s.call("POST", "/application/"+appID+"/complete?hours=abc", s.company, nil)
	s.Equal(http.StatusBadRequest, code)

	code, app, _ := s.transition(s.company, appID, "complete", map[string]float64{"hours": 45})
	s.Require().Equal(http.StatusOK, code)
	s.Require().NotNil(app.CreditsAwarded)
	s.Equal(1.5, *app.CreditsAwarded)

	code, app, _ = s.transition(s.institute, appID, "mark-exception", map[string]string{"reason": "below minimum"})
	s.Require().Equal(http.StatusOK, code)
	s.Equal("exception", app.Status)
	s.Require().NotNil(app.Reason)
	s.Equal("below minimum", *app.Reason)
}

func (s *apiSuite) TestNotifications() {
	internshipID := s.postInternship(s.company, "QA Intern", "UGC")
	appID := s.applyTo(internshipID)
	code, _, _ := s.transition(s.company, appID, "reject", map[string]string{"reason": "position filled"})
	s.Require().Equal(http.StatusOK, code)

	code, env := s.call("GET", "/notifications/unread-count", s.student, nil)
	s.Require().Equal(http.StatusOK, code)
	var count struct {
		Unread int64 `json:"unread"`
	}
	s.decode(env, &count)
	s.EqualValues(1, count.Unread)

	code, env = s.call("GET", "/notifications/unread-count", s.company, nil)
	s.Require().Equal(http.StatusOK, code)
	s.decode(env, &count)
	s.EqualValues(1, count.Unread)

	code, env = s.call("POST", "/notifications/mark-all-read", s.student, nil)
	s.Require().Equal(http.StatusOK, code)
	var updated struct {
		Updated int64 `json:"updated"`
	}
	s.decode(env, &updated)
	s.EqualValues(1, updated.Updated)

	code, env = s.call("GET", "/notifications?unread=true", s.student, nil)
	s.Require().Equal(http.StatusOK, code)
	var list []json.RawMessage
	s.decode(env, &list)
	s.Empty(list)
}

func (s *apiSuite) TestRegistryFailureIsBadGateway() {
	internshipID := s.postInternship(s.company, "ML Intern", "UGC")
	appID := s.applyTo(internshipID)
	_, _, _ = s.transition(s.company, appID, "accept", nil)
	_, _, _ = s.transition(s.company, appID, "complete", map[string]float64{"hours": 60})
	code, _, _ := s.transition(s.institute, appID, "approve-credits", nil)
	s.Require().Equal(http.StatusOK, code)

	s.failing.Store(true)
	code, env := s.call("POST", "/application/"+appID+"/push-to-registry", s.institute, nil)
	s.Equal(http.StatusBadGateway, code)
	s.Equal("UPSTREAM_ERROR", env.Error.Code)

	s.failing.Store(false)
	code, _ = s.call("POST", "/application/"+appID+"/push-to-registry", s.institute, nil)
	s.Equal(http.StatusOK, code)
}

func (s *apiSuite) TestReportsAndAdmin() {
	ugc := s.postInternship(s.company, "Backend Intern", "UGC")
	aicte := s.postInternship(s.otherCompany, "Firmware Intern", "AICTE")
	for _, internshipID := range []string{ugc, aicte} {
		appID := s.applyTo(internshipID)
		token := s.company
		if internshipID == aicte {
			token = s.otherCompany
		}
		_, _, _ = s.transition(token, appID, "accept", nil)
		_, _, _ = s.transition(token, appID, "complete", map[string]float64{"hours": 120})
		code, _, _ := s.transition(s.institute, appID, "approve-credits", nil)
		s.Require().Equal(http.StatusOK, code)
	}

	code, env := s.call("GET", "/reports/credits", s.institute, nil)
	s.Require().Equal(http.StatusOK, code, env.Error)
	var report struct {
		TotalRecords         int     `json:"total_records"`
		ApprovedCount        int     `json:"approved_count"`
		TotalApprovedCredits float64 `json:"total_approved_credits"`
		ByPolicy             []struct {
			Policy          string  `json:"policy"`
			ApprovedCredits float64 `json:"approved_credits"`
		} `json:"by_policy"`
	}
	s.decode(env, &report)
	s.Equal(2, report.TotalRecords)
	s.Equal(2, report.ApprovedCount)
	s.Equal(7.0, report.TotalApprovedCredits)
	s.Require().Len(report.ByPolicy, 2)
	s.Equal("AICTE", report.ByPolicy[0].Policy)
	s.Equal(3.0, report.ByPolicy[0].ApprovedCredits)
	s.Equal(4.0, report.ByPolicy[1].ApprovedCredits)

	code, _ = s.call("GET", "/reports/credits?policy=UGC", s.student, nil)
	s.Equal(http.StatusForbidden, code)

	code, _ = s.call("GET", "/reports/credits?start_date=2024-05-10&end_date=2024-05-01", s.institute, nil)
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.call("GET", "/reports/credits?policy=NAAC", s.institute, nil)
	s.Equal(http.StatusBadRequest, code)

	code, env = s.call("GET", "/admin/stats", s.admin, nil)
	s.Require().Equal(http.StatusOK, code)
	var stats struct {
		Stats struct {
			CreditsIssued        float64          `json:"credits_issued"`
			ApplicationsByStatus map[string]int64 `json:"applications_by_status"`
		} `json:"stats"`
	}
	s.decode(env, &stats)
	s.Equal(7.0, stats.Stats.CreditsIssued)
	s.EqualValues(2, stats.Stats.ApplicationsByStatus["completed"])

	code, _ = s.call("GET", "/admin/stats", s.institute, nil)
	s.Equal(http.StatusForbidden, code)

	code, env = s.call("GET", "/admin/credits", s.admin, nil)
	s.Require().Equal(http.StatusOK, code)
	var records []json.RawMessage
	s.decode(env, &records)
	s.Len(records, 2)
}

func TestInitializeWithoutRegistryUsesSimulation(t *testing.T) {
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, database.RunMigrations(db))

	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "router-test-secret", AccessTokenTTL: 1},
		Storage:     config.StorageConfig{LocalDir: t.TempDir()},
		RateLimit:   config.RateLimitConfig{Enabled: true, RequestsPerMin: 600, Burst: 50, AuthPerMin: 60},
		I18n:        config.I18nConfig{DefaultLocale: "en"},
	}
	engine, cleanup, err := Initialize(db, cfg)
	require.NoError(t, err)
	defer cleanup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
