package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/config"
	"github.com/stemsi/labquiz/internal/handler"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/repository"
	"github.com/stemsi/labquiz/internal/service"
	"github.com/stemsi/labquiz/internal/validator"
)

const (
	student  = "2021-EE-314"
	password = "s3cret"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

type server struct {
	t       *testing.T
	handler http.Handler
	dir     string
}

func newServer(t *testing.T) *server {
	t.Helper()
	dir := t.TempDir()
	imagesDir := filepath.Join(dir, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imagesDir, "circuit.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		GinMode:            gin.TestMode,
		JWTSecret:          "router-secret",
		AdminUsername:      "admin",
		AdminPassword:      "admin123",
		BcryptCost:         4,
		QuizDuration:       10 * time.Minute,
		NumQuestions:       3,
		SubmitGrace:        15 * time.Second,
		EnforceTimeLimit:   true,
		EnablePasswordAuth: true,
		LoginRateLimit:     0,
	}

	qs := make([]model.Question, 5)
	for i := range qs {
		qs[i] = model.Question{
			ID:      i + 1,
			Text:    fmt.Sprintf("Question %d", i+1),
			Options: []string{"alpha", "beta", "gamma", "delta"},
			Correct: "ALPHA",
		}
	}
	bank, err := repository.NewQuestionBank(qs)
	if err != nil {
		t.Fatal(err)
	}
	roster := repository.NewRoster([]model.StudentRecord{{RollNumber: student, Secret: password}})

	log := zerolog.Nop()
	store := repository.NewCSVResponseStore(filepath.Join(dir, "responses.csv"))
	ledger := service.NewLedgerService(store, repository.NewBackupWriter(dir), service.DefaultWorkstationMap(), nil, log)
	tokens := service.NewRetakeTokenService(repository.NewJSONTokenStore(filepath.Join(dir, "retake_tokens.json")), log)
	registry := service.NewSessionRegistry()
	auth := service.NewAuthService(cfg)
	sessions := service.NewExamSessionService(cfg, service.NewCredentialService(roster), bank, ledger, tokens, registry, auth, log)
	admin := service.NewAdminService(ledger, tokens, registry, bank, roster, log)

	h := &Handlers{
		Auth:          handler.NewAuthHandler(auth, sessions),
		StudentPortal: handler.NewStudentPortalHandler(sessions),
		Admin:         handler.NewAdminHandler(admin, sessions, log),
		Media:         handler.NewMediaHandler(imagesDir),
		WS:            handler.NewWSHandler(sessions, log, nil),
		Monitor:       handler.NewMonitorHandler(admin, sessions, log),
		System:        handler.NewSystemHandler(sessions, bank.Len()),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r, err := SetupRouter(ctx, auth, registry, h, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return &server{t: t, handler: r, dir: dir}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *server) do(method, path, token, contentType, body string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.168.1.7:40000"
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body, err)
		}
	}
	return w, env
}

func (s *server) json(method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	return s.do(method, path, token, "application/json", body)
}

type loginData struct {
	Token   string `json:"token"`
	Retake  bool   `json:"retake"`
	Session struct {
		SessionID string `json:"session_id"`
		Questions []struct {
			ID int `json:"id"`
		} `json:"questions"`
	} `json:"session"`
}

func (s *server) login(rollNumber string) loginData {
	s.t.Helper()
	w, env := s.json(http.MethodPost, "/api/v1/auth/student/login", "",
		fmt.Sprintf(`{"roll_number":%q,"password":%q}`, rollNumber, password))
	if w.Code != http.StatusOK {
		s.t.Fatalf("login status = %d: %s", w.Code, w.Body)
	}
	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		s.t.Fatal(err)
	}
	return data
}

func (s *server) adminToken() string {
	s.t.Helper()
	w, env := s.json(http.MethodPost, "/api/v1/auth/admin/login", "", `{"username":"admin","password":"admin123"}`)
	if w.Code != http.StatusOK {
		s.t.Fatalf("admin login status = %d: %s", w.Code, w.Body)
	}
	var data struct {
		Token string `json:"token"`
	}
	json.Unmarshal(env.Data, &data)
	return data.Token
}

type submission struct {
	StudentID string `json:"student_id"`
	Outcome   string `json:"outcome"`
	Status    string `json:"status"`
	Score     *struct {
		Correct int `json:"correct"`
		Total   int `json:"total"`
	} `json:"score"`
}

func decodeSubmission(t *testing.T, env envelope) submission {
	t.Helper()
	var sub submission
	if err := json.Unmarshal(env.Data, &sub); err != nil {
		t.Fatal(err)
	}
	return sub
}

func TestStudentAttemptFlow(t *testing.T) {
	s := newServer(t)
	data := s.login(strings.ToLower(student))
	if len(data.Session.Questions) != 3 {
		t.Fatalf("questions = %d", len(data.Session.Questions))
	}
	q := data.Session.Questions

	// A second workstation is turned away while the session is live.
	w, env := s.json(http.MethodPost, "/api/v1/auth/student/login", "",
		fmt.Sprintf(`{"roll_number":%q,"password":%q}`, student, password))
	if w.Code != http.StatusConflict || env.Error.Code != "SESSION_ALREADY_ACTIVE" {
		t.Fatalf("second login = %d %s", w.Code, w.Body)
	}

	w, _ = s.json(http.MethodPut, "/api/v1/student/session/answers", data.Token,
		fmt.Sprintf(`{"question_id":%d,"option":"alpha"}`, q[0].ID))
	if w.Code != http.StatusOK {
		t.Fatalf("autosave status = %d: %s", w.Code, w.Body)
	}

	w, env = s.json(http.MethodGet, "/api/v1/student/session", data.Token, "")
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), `"session"`) {
		t.Fatalf("session = %d %s", w.Code, w.Body)
	}

	body := fmt.Sprintf(`{"answers":{"%d":"alpha"},"status":"ok"}`, q[1].ID)
	w, env = s.json(http.MethodPost, "/api/v1/student/session/submit", data.Token, body)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", w.Code, w.Body)
	}
	sub := decodeSubmission(t, env)
	if sub.Outcome != "SCORED" || sub.Score == nil || sub.Score.Correct != 2 || sub.Score.Total != 3 {
		t.Fatalf("submission = %+v", sub)
	}

	// Retried submission is acknowledged without recording again.
	w, env = s.json(http.MethodPost, "/api/v1/student/session/submit", data.Token, body)
	if w.Code != http.StatusOK || decodeSubmission(t, env).Outcome != "ALREADY_SUBMITTED" {
		t.Fatalf("retry = %d %s", w.Code, w.Body)
	}

	w, env = s.json(http.MethodPost, "/api/v1/auth/student/login", "",
		fmt.Sprintf(`{"roll_number":%q,"password":%q}`, student, password))
	if w.Code != http.StatusForbidden || env.Error.Code != "ALREADY_ATTEMPTED" {
		t.Fatalf("relogin = %d %s", w.Code, w.Body)
	}
}

func TestLoginRejectionMessages(t *testing.T) {
	s := newServer(t)
	cases := []struct {
		body    string
		status  int
		message string
	}{
		{`{"roll_number":"","password":"x"}`, http.StatusBadRequest, "Please enter your roll number"},
		{`{"roll_number":"2021-EE-999","password":"x"}`, http.StatusUnauthorized, "Invalid Roll Number"},
		{`{"roll_number":"2021-EE-314","password":"wrong"}`, http.StatusUnauthorized, "Incorrect Password"},
	}
	for _, tc := range cases {
		w, env := s.json(http.MethodPost, "/api/v1/auth/student/login", "", tc.body)
		if w.Code != tc.status || env.Error == nil || env.Error.Message != tc.message {
			t.Errorf("%s: got %d %s", tc.body, w.Code, w.Body)
		}
	}
}

func TestFormLoginAndBeaconSubmit(t *testing.T) {
	s := newServer(t)
	form := url.Values{"student_id": {student}, "password": {password}}
	w, env := s.do(http.MethodPost, "/api/v1/auth/student/login", "", "application/x-www-form-urlencoded", form.Encode())
	if w.Code != http.StatusOK {
		t.Fatalf("form login = %d %s", w.Code, w.Body)
	}
	var data loginData
	json.Unmarshal(env.Data, &data)

	beacon := url.Values{"status": {"tab_closed"}}
	for _, q := range data.Session.Questions {
		beacon.Set(fmt.Sprintf("q%d", q.ID), "beta")
	}
	w, env = s.do(http.MethodPost, "/api/v1/student/session/submit?token="+data.Token, "",
		"application/x-www-form-urlencoded", beacon.Encode())
	if w.Code != http.StatusOK {
		t.Fatalf("beacon submit = %d %s", w.Code, w.Body)
	}
	sub := decodeSubmission(t, env)
	if sub.Status != "tab_closed" || sub.Score == nil || sub.Score.Correct != 0 || sub.Score.Total != 3 {
		t.Fatalf("submission = %+v", sub)
	}
}

func TestSubmitRejectsUnknownStatus(t *testing.T) {
	s := newServer(t)
	data := s.login(student)
	w, _ := s.json(http.MethodPost, "/api/v1/student/session/submit", data.Token, `{"status":"gave_up"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d %s", w.Code, w.Body)
	}
	// The session survives a rejected submission.
	if w, _ := s.json(http.MethodGet, "/api/v1/student/session", data.Token, ""); w.Code != http.StatusOK {
		t.Fatalf("session after bad submit = %d", w.Code)
	}
}

func TestAdminRetakeWorkflow(t *testing.T) {
	s := newServer(t)
	data := s.login(student)
	if w, _ := s.json(http.MethodPost, "/api/v1/student/session/submit", data.Token, `{}`); w.Code != http.StatusOK {
		t.Fatalf("submit = %d", w.Code)
	}

	admin := s.adminToken()

	// Student tokens cannot reach admin routes.
	if w, _ := s.json(http.MethodGet, "/api/v1/admin/results", data.Token, ""); w.Code != http.StatusForbidden {
		t.Fatalf("student on admin route = %d", w.Code)
	}

	w, env := s.json(http.MethodGet, "/api/v1/admin/results", admin, "")
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), student) {
		t.Fatalf("results = %d %s", w.Code, w.Body)
	}

	w, env = s.json(http.MethodGet, "/api/v1/admin/students/"+student+"/responses", admin, "")
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), "Question ") {
		t.Fatalf("student responses = %d %s", w.Code, w.Body)
	}
	if w, _ := s.json(http.MethodGet, "/api/v1/admin/students/2021-EE-999/responses", admin, ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown student = %d", w.Code)
	}

	w, env = s.json(http.MethodGet, "/api/v1/admin/retakes/"+student, admin, "")
	if w.Code != http.StatusOK {
		t.Fatalf("preview = %d %s", w.Code, w.Body)
	}
	var preview model.RetakePreview
	json.Unmarshal(env.Data, &preview)
	if preview.ResponseCount != 3 {
		t.Fatalf("preview = %+v", preview)
	}

	w, env = s.json(http.MethodPost, "/api/v1/admin/retakes", admin, fmt.Sprintf(`{"student_id":%q}`, student))
	if w.Code != http.StatusBadRequest || env.Error.Code != "CONFIRMATION_REQUIRED" {
		t.Fatalf("unconfirmed = %d %s", w.Code, w.Body)
	}

	w, env = s.json(http.MethodPost, "/api/v1/admin/retakes", admin, fmt.Sprintf(`{"student_id":%q,"confirm":true}`, student))
	if w.Code != http.StatusOK {
		t.Fatalf("confirm = %d %s", w.Code, w.Body)
	}
	var result model.RetakeResult
	json.Unmarshal(env.Data, &result)
	if result.Archived != 3 || result.Token == "" {
		t.Fatalf("result = %+v", result)
	}
	if _, err := os.Stat(result.ArchivePath); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if again := s.login(student); !again.Retake {
		t.Fatal("login after retake grant not flagged as retake")
	}
}

func TestAdminSessionReset(t *testing.T) {
	s := newServer(t)
	first := s.login(student)
	admin := s.adminToken()

	w, env := s.json(http.MethodGet, "/api/v1/admin/sessions", admin, "")
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), first.Session.SessionID) {
		t.Fatalf("sessions = %d %s", w.Code, w.Body)
	}

	if w, _ := s.json(http.MethodPost, "/api/v1/admin/sessions/"+student+"/reset", admin, ""); w.Code != http.StatusOK {
		t.Fatalf("reset = %d", w.Code)
	}
	second := s.login(student)

	w, env = s.json(http.MethodGet, "/api/v1/student/session", first.Token, "")
	if w.Code != http.StatusUnauthorized || env.Error.Code != "SESSION_INVALIDATED" {
		t.Fatalf("stale token = %d %s", w.Code, w.Body)
	}
	if w, _ := s.json(http.MethodGet, "/api/v1/student/session", second.Token, ""); w.Code != http.StatusOK {
		t.Fatalf("current token = %d", w.Code)
	}
}

func TestMarksheetDownload(t *testing.T) {
	s := newServer(t)
	data := s.login(student)
	s.json(http.MethodPost, "/api/v1/student/session/submit", data.Token, `{}`)
	admin := s.adminToken()

	w, _ := s.do(http.MethodGet, "/api/v1/admin/marksheet", admin, "", "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "student_id,total_score,workstation,status") {
		t.Fatalf("csv = %d %q", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), student+",0,WS-07,ok") {
		t.Fatalf("csv row missing: %q", w.Body)
	}

	w, _ = s.do(http.MethodGet, "/api/v1/admin/marksheet?format=xlsx", admin, "", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("xlsx = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "marksheet.xlsx") {
		t.Fatalf("disposition = %q", w.Header().Get("Content-Disposition"))
	}
}

func TestImages(t *testing.T) {
	s := newServer(t)
	w, _ := s.do(http.MethodGet, "/images/circuit.png", "", "", "")
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") == "" {
		t.Fatalf("image = %d cache=%q", w.Code, w.Header().Get("Cache-Control"))
	}
	for _, name := range []string{"..secret.png", "a%5Cb.png", "missing.png"} {
		if w, _ := s.do(http.MethodGet, "/images/"+name, "", "", ""); w.Code == http.StatusOK {
			t.Errorf("%s served", name)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	if w, _ := s.do(http.MethodGet, "/health", "", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
}
