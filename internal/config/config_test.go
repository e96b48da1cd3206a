package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/quiz")
	t.Setenv("QUIZ_DURATION_MINUTES", "")
	t.Setenv("ENFORCE_TIME_LIMIT", "not-a-bool")

	cfg := Load()

	if cfg.NumQuestions != 10 {
		t.Fatalf("NumQuestions = %d, want 10", cfg.NumQuestions)
	}
	if cfg.QuizDuration != time.Minute {
		t.Fatalf("QuizDuration = %v, want 1m", cfg.QuizDuration)
	}
	if !cfg.EnforceTimeLimit {
		t.Fatalf("invalid bool should fall back to default true")
	}
	if cfg.ResponsesFile != "/srv/quiz/responses.csv" {
		t.Fatalf("ResponsesFile = %q", cfg.ResponsesFile)
	}
	if cfg.StudentsFile != "/srv/quiz/passwords/students.xlsx" {
		t.Fatalf("StudentsFile = %q", cfg.StudentsFile)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NUM_QUESTIONS", "5")
	t.Setenv("ENABLE_PASSWORD_AUTH", "false")
	t.Setenv("RESPONSE_STORE", "Postgres")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg := Load()

	if cfg.NumQuestions != 5 {
		t.Fatalf("NumQuestions = %d, want 5", cfg.NumQuestions)
	}
	if cfg.EnablePasswordAuth {
		t.Fatalf("EnablePasswordAuth should be false")
	}
	if cfg.ResponseStore != ResponseStorePostgres {
		t.Fatalf("ResponseStore = %q", cfg.ResponseStore)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestRetakeTokensKey(t *testing.T) {
	if got := CacheKey.RetakeTokensKey(); got != "labquiz:retake_tokens" {
		t.Fatalf("RetakeTokensKey = %q", got)
	}
}
