package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"melkor-test","object":"model"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL+"/v1", "test", srv.Client())
	if err := CheckModel(context.Background(), p, "melkor-test"); err != nil {
		t.Fatalf("CheckModel: %v", err)
	}
	if err := CheckModel(context.Background(), p, "gpt-unknown"); err == nil {
		t.Fatalf("expected error for a missing model")
	}
}

type chatOnly struct{ Client }

func TestCheckModel_WithoutListing(t *testing.T) {
	if err := CheckModel(context.Background(), chatOnly{}, "any"); err != nil {
		t.Fatalf("backends without listing should pass: %v", err)
	}
}
