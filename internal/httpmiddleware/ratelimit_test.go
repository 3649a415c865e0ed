package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTokenBucketLimits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewSimpleTokenBucket(2, 2).GinMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	statuses := []int{}
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	want := []int{200, 200, 429, 429}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("request %d status = %d, want %d (all: %v)", i, statuses[i], want[i], statuses)
		}
	}
}

func TestTokenBucketPerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewSimpleTokenBucket(1, 1).GinMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(addr string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := send("10.0.0.1:1"); got != http.StatusOK {
		t.Fatalf("first client first request = %d", got)
	}
	if got := send("10.0.0.1:1"); got != http.StatusTooManyRequests {
		t.Fatalf("first client second request = %d, want 429", got)
	}
	// A different client has its own bucket.
	if got := send("10.0.0.2:1"); got != http.StatusOK {
		t.Fatalf("second client first request = %d", got)
	}
}
