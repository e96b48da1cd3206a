package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stemsi/labquiz/internal/model"
)

func login(t *testing.T, env *testEnv, roll string) *LoginResult {
	t.Helper()
	res, err := env.sessions.Login(context.Background(), LoginInput{RollNumber: roll, Password: testPassword, IP: "192.168.1.4"})
	if err != nil {
		t.Fatalf("Login(%s): %v", roll, err)
	}
	return res
}

// answersWithCorrect answers the first `correct` questions right and the rest wrong.
func answersWithCorrect(view model.SessionView, correct int) map[int]string {
	answers := make(map[int]string, len(view.Questions))
	for i, q := range view.Questions {
		if i < correct {
			answers[q.ID] = "alpha"
		} else {
			answers[q.ID] = "beta"
		}
	}
	return answers
}

func assertReason(t *testing.T, err error, want LoginReason) {
	t.Helper()
	got, ok := RejectionReason(err)
	if !ok || got != want {
		t.Fatalf("err = %v (reason %q), want reason %q", err, got, want)
	}
}

func TestAttemptRetakeScenario(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	ctx := context.Background()

	first := login(t, env, " 2021-ee-314 ")
	if len(first.Session.Questions) != 10 {
		t.Fatalf("assigned %d questions, want 10", len(first.Session.Questions))
	}
	seen := map[int]bool{}
	for _, q := range first.Session.Questions {
		if seen[q.ID] {
			t.Fatalf("question %d assigned twice", q.ID)
		}
		seen[q.ID] = true
	}

	result, err := env.sessions.Submit(ctx, SubmitInput{
		StudentID: testStudent,
		SessionID: first.Session.SessionID,
		Answers:   answersWithCorrect(first.Session, 7),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := model.Score{Correct: 7, Total: 10, Percentage: 70}
	if result.Outcome != model.OutcomeScored || result.Score == nil || *result.Score != want {
		t.Fatalf("result = %+v score %+v", result, result.Score)
	}
	if env.registry.Contains(testStudent) {
		t.Fatal("registry entry survived submission")
	}

	_, err = env.sessions.Login(ctx, LoginInput{RollNumber: testStudent, Password: testPassword})
	assertReason(t, err, ReasonAlreadyAttempted)

	if _, err := env.admin.ConfirmRetake(ctx, model.RetakeRequest{StudentID: testStudent, Confirm: true}); err != nil {
		t.Fatal(err)
	}
	third := login(t, env, testStudent)
	if !third.Retake || len(third.Session.Questions) != 10 || third.Session.SessionID == first.Session.SessionID {
		t.Fatalf("retake session = %+v", third)
	}
	if len(third.Session.Answers) != 0 {
		t.Fatal("retake session inherited answers")
	}
}

func TestLoginRejections(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	ctx := context.Background()

	_, err := env.sessions.Login(ctx, LoginInput{RollNumber: "   "})
	assertReason(t, err, ReasonEmptyRollNumber)

	_, err = env.sessions.Login(ctx, LoginInput{RollNumber: testStudent})
	assertReason(t, err, ReasonMissingPassword)

	_, err = env.sessions.Login(ctx, LoginInput{RollNumber: "NOPE", Password: "x"})
	assertReason(t, err, ReasonInvalidRollNumber)

	_, err = env.sessions.Login(ctx, LoginInput{RollNumber: testStudent, Password: "   "})
	assertReason(t, err, ReasonMissingPassword)

	_, err = env.sessions.Login(ctx, LoginInput{RollNumber: testStudent, Password: "wrong"})
	assertReason(t, err, ReasonIncorrectPassword)

	if _, err := env.sessions.Login(ctx, LoginInput{RollNumber: testStudent, Password: " " + testPassword + " "}); err != nil {
		t.Fatalf("login with padded password: %v", err)
	}
	_, err = env.sessions.Login(ctx, LoginInput{RollNumber: testStudent, Password: testPassword})
	assertReason(t, err, ReasonSessionActive)
}

func TestLoginWithoutPasswordAuth(t *testing.T) {
	cfg := testConfig()
	cfg.EnablePasswordAuth = false
	env := newTestEnv(t, cfg, 15)

	if _, err := env.sessions.Login(context.Background(), LoginInput{RollNumber: "ANYONE"}); err != nil {
		t.Fatalf("roll-number-only login: %v", err)
	}
}

func TestLoginInsufficientQuestions(t *testing.T) {
	env := newTestEnv(t, nil, 9)

	_, err := env.sessions.Login(context.Background(), LoginInput{RollNumber: testStudent, Password: testPassword})
	assertReason(t, err, ReasonInsufficientQuestion)
	if env.registry.Contains(testStudent) {
		t.Fatal("rejected login left a registry entry")
	}
}

func TestConcurrentLoginsSameStudent(t *testing.T) {
	env := newTestEnv(t, nil, 15)

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.sessions.Login(context.Background(), LoginInput{RollNumber: testStudent, Password: testPassword})
			if err == nil {
				ok.Add(1)
			} else if reason, _ := RejectionReason(err); reason == ReasonSessionActive {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || rejected.Load() != 19 {
		t.Fatalf("ok=%d rejected=%d, want 1 and 19", ok.Load(), rejected.Load())
	}
}

func TestConcurrentSubmissionsRecordOnce(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	ctx := context.Background()
	res := login(t, env, testStudent)
	answers := answersWithCorrect(res.Session, 10)

	outcomes := make(chan model.SessionOutcome, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := model.StatusOK
			if i%2 == 1 {
				status = model.StatusTabClosed
			}
			r, err := env.sessions.Submit(ctx, SubmitInput{StudentID: testStudent, SessionID: res.Session.SessionID, Answers: answers, Status: status})
			if err != nil {
				t.Error(err)
				return
			}
			outcomes <- r.Outcome
		}(i)
	}
	wg.Wait()
	close(outcomes)

	scored := 0
	for o := range outcomes {
		if o == model.OutcomeScored {
			scored++
		}
	}
	if scored != 1 {
		t.Fatalf("%d submissions scored, want 1", scored)
	}
	if n, _ := env.ledger.Count(ctx, testStudent); n != 10 {
		t.Fatalf("ledger holds %d records, want 10", n)
	}
}

func TestSubmitAfterCompletionIsAlreadySubmitted(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	ctx := context.Background()
	res := login(t, env, testStudent)
	env.sessions.Submit(ctx, SubmitInput{StudentID: testStudent, SessionID: res.Session.SessionID, Answers: answersWithCorrect(res.Session, 4)})

	again, err := env.sessions.Submit(ctx, SubmitInput{StudentID: testStudent, SessionID: res.Session.SessionID, Status: model.StatusTabClosed})
	if err != nil {
		t.Fatal(err)
	}
	if again.Outcome != model.OutcomeAlreadySubmitted || again.Score == nil || again.Score.Correct != 4 {
		t.Fatalf("retry = %+v", again)
	}

	_, result, err := env.sessions.Resume(ctx, testStudent, res.Session.SessionID)
	if err != nil || result == nil || result.Outcome != model.OutcomeAlreadySubmitted {
		t.Fatalf("Resume after submit = %+v, %v", result, err)
	}
}

func TestSubmitWithoutSession(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	_, err := env.sessions.Submit(context.Background(), SubmitInput{StudentID: testStudent})
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestSubmitRejectsStaleSessionAndBadStatus(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	ctx := context.Background()
	res := login(t, env, testStudent)

	_, err := env.sessions.Submit(ctx, SubmitInput{StudentID: testStudent, SessionID: "stale"})
	if !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("stale session: err = %v", err)
	}
	_, err = env.sessions.Submit(ctx, SubmitInput{StudentID: testStudent, SessionID: res.Session.SessionID, Status: "cheating"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bad status: err = %v", err)
	}
	if !env.registry.Contains(testStudent) {
		t.Fatal("rejected submission ended the session")
	}
}

func TestViolationSubmissionUsesAutosavedAnswers(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	ctx := context.Background()
	res := login(t, env, testStudent)
	qs := res.Session.Questions

	if err := env.sessions.Autosave(ctx, testStudent, res.Session.SessionID, qs[0].ID, "alpha"); err != nil {
		t.Fatal(err)
	}
	env.sessions.Autosave(ctx, testStudent, res.Session.SessionID, qs[1].ID, "alpha")

	result, err := env.sessions.Submit(ctx, SubmitInput{
		StudentID: testStudent,
		SessionID: res.Session.SessionID,
		Answers:   map[int]string{qs[1].ID: "gamma"},
		Status:    model.StatusFullscreenViolation,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Score.Correct != 1 || result.Score.Total != 10 {
		t.Fatalf("score = %+v, want 1/10", result.Score)
	}

	recs, _ := env.ledger.ForStudent(ctx, testStudent)
	noAnswer := 0
	for _, r := range recs {
		if r.Status != model.StatusFullscreenViolation {
			t.Fatalf("record status = %q", r.Status)
		}
		if r.SelectedOption == model.NoAnswer {
			noAnswer++
		}
	}
	if noAnswer != 8 {
		t.Fatalf("%d NO_ANSWER rows, want 8", noAnswer)
	}
}

func TestLateSubmissionIsTimeout(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	ctx := context.Background()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	env.sessions.now = func() time.Time { return start }
	res := login(t, env, testStudent)
	env.sessions.Autosave(ctx, testStudent, res.Session.SessionID, res.Session.Questions[0].ID, "alpha")

	env.sessions.now = func() time.Time { return start.Add(11 * time.Minute) }
	if err := env.sessions.Autosave(ctx, testStudent, res.Session.SessionID, res.Session.Questions[1].ID, "alpha"); !errors.Is(err, ErrTimeUp) {
		t.Fatalf("late autosave: err = %v", err)
	}
	result, err := env.sessions.Submit(ctx, SubmitInput{
		StudentID: testStudent,
		SessionID: res.Session.SessionID,
		Answers:   answersWithCorrect(res.Session, 10),
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != model.StatusTimeout || result.Score.Correct != 1 {
		t.Fatalf("late submission = %+v score %+v", result, result.Score)
	}
}

func TestLateSubmissionTrustedWhenNotEnforced(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceTimeLimit = false
	env := newTestEnv(t, cfg, 15)
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	env.sessions.now = func() time.Time { return start }
	res := login(t, env, testStudent)

	env.sessions.now = func() time.Time { return start.Add(time.Hour) }
	result, err := env.sessions.Submit(context.Background(), SubmitInput{
		StudentID: testStudent,
		SessionID: res.Session.SessionID,
		Answers:   answersWithCorrect(res.Session, 10),
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != model.StatusOK || result.Score.Correct != 10 {
		t.Fatalf("result = %+v", result)
	}
	if env.sessions.ExpireOverdue(context.Background()) != 0 {
		t.Fatal("ExpireOverdue acted with enforcement disabled")
	}
}

func TestExpireOverdue(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	ctx := context.Background()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	env.sessions.now = func() time.Time { return start }
	login(t, env, testStudent)
	env.sessions.now = func() time.Time { return start.Add(5 * time.Minute) }
	login(t, env, "2021-EE-315")

	env.sessions.now = func() time.Time { return start.Add(10*time.Minute + 20*time.Second) }
	if n := env.sessions.ExpireOverdue(ctx); n != 1 {
		t.Fatalf("expired %d sessions, want 1", n)
	}
	if env.registry.Contains(testStudent) || !env.registry.Contains("2021-EE-315") {
		t.Fatal("wrong session expired")
	}
	recs, _ := env.ledger.ForStudent(ctx, testStudent)
	if len(recs) != 10 || recs[0].Status != model.StatusTimeout {
		t.Fatalf("expired records = %d, status %q", len(recs), recs[0].Status)
	}
}

func TestLogoutAndAdminReset(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	ctx := context.Background()
	res := login(t, env, testStudent)

	if err := env.sessions.Logout(ctx, testStudent, "stale"); !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("logout with stale id: %v", err)
	}
	if err := env.sessions.Logout(ctx, testStudent, res.Session.SessionID); err != nil {
		t.Fatal(err)
	}
	if n, _ := env.ledger.Count(ctx, testStudent); n != 0 {
		t.Fatal("logout recorded responses")
	}

	login(t, env, testStudent)
	if got := env.sessions.ActiveSessions(); len(got) != 1 || got[0].StudentID != testStudent {
		t.Fatalf("ActiveSessions = %+v", got)
	}
	if err := env.sessions.ResetSession(ctx, "2021-ee-314"); err != nil {
		t.Fatal(err)
	}
	if err := env.sessions.ResetSession(ctx, testStudent); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("second reset: %v", err)
	}
	login(t, env, testStudent)
}

func TestStudentTokenCarriesSession(t *testing.T) {
	env := newTestEnv(t, nil, 15)
	res := login(t, env, testStudent)

	claims, err := env.auth.ValidateToken(res.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.TokenType != TokenTypeStudent || claims.Subject != testStudent || claims.ID != res.Session.SessionID {
		t.Fatalf("claims = %+v", claims)
	}
}
