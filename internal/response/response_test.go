package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ok", func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"n": 1}) })
	r.GET("/fail", func(c *gin.Context) { FailWithMessage(c, http.StatusForbidden, ErrLoginRejected, "Incorrect Password") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r.ServeHTTP(w, req)

	var body struct {
		Data     map[string]int `json:"data"`
		Error    *ErrorBody     `json:"error"`
		Metadata Metadata       `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data["n"] != 1 || body.Error != nil || body.Metadata.RequestID != "req-123" {
		t.Fatalf("body = %s", w.Body)
	}
	if w.Header().Get("X-Request-ID") != "req-123" {
		t.Fatal("request id not echoed")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	body.Error = nil
	json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusForbidden || body.Error == nil || body.Error.Message != "Incorrect Password" || body.Error.Code != ErrLoginRejected {
		t.Fatalf("fail body = %s", w.Body)
	}
	if body.Metadata.RequestID == "" {
		t.Fatal("generated request id missing")
	}
}
