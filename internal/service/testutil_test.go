package service

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/config"
	"github.com/stemsi/labquiz/internal/model"
	"github.com/stemsi/labquiz/internal/repository"
)

const (
	testStudent  = "2021-EE-314"
	testPassword = "s3cret"
)

// testEnv wires the services over file-backed stores in a temp dir.
type testEnv struct {
	cfg      *config.Config
	dir      string
	store    *repository.CSVResponseStore
	ledger   *LedgerService
	tokens   *RetakeTokenService
	registry *SessionRegistry
	sessions *ExamSessionService
	admin    *AdminService
	auth     *AuthService
	notifier *countingNotifier
}

type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) Notify() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		AdminUsername:      "admin",
		AdminPassword:      "admin123",
		BcryptCost:         4,
		QuizDuration:       10 * time.Minute,
		NumQuestions:       10,
		SubmitGrace:        15 * time.Second,
		EnforceTimeLimit:   true,
		EnablePasswordAuth: true,
	}
}

// testBank returns n questions whose correct answer is "alpha".
func testBank(t *testing.T, n int) *repository.QuestionBank {
	t.Helper()
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:      i + 1,
			Text:    "Question text",
			Options: []string{"alpha", "beta", "gamma", "delta"},
			Correct: "ALPHA",
		}
	}
	bank, err := repository.NewQuestionBank(qs)
	if err != nil {
		t.Fatal(err)
	}
	return bank
}

func newTestEnv(t *testing.T, cfg *config.Config, bankSize int) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	dir := t.TempDir()
	log := zerolog.Nop()

	env := &testEnv{
		cfg:      cfg,
		dir:      dir,
		store:    repository.NewCSVResponseStore(filepath.Join(dir, "responses.csv")),
		registry: NewSessionRegistry(),
		auth:     NewAuthService(cfg),
		notifier: &countingNotifier{},
	}
	bank := testBank(t, bankSize)
	roster := repository.NewRoster([]model.StudentRecord{
		{RollNumber: testStudent, Secret: testPassword},
		{RollNumber: "2021-EE-315", Secret: testPassword},
	})

	env.ledger = NewLedgerService(env.store, repository.NewBackupWriter(dir), DefaultWorkstationMap(), env.notifier, log)
	env.tokens = NewRetakeTokenService(repository.NewJSONTokenStore(filepath.Join(dir, "retake_tokens.json")), log)
	env.sessions = NewExamSessionService(cfg, NewCredentialService(roster), bank, env.ledger, env.tokens, env.registry, env.auth, log)
	env.admin = NewAdminService(env.ledger, env.tokens, env.registry, bank, roster, log)
	return env
}
