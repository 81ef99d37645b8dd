package cas

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const successXML = `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
	<cas:authenticationSuccess>
		<cas:user>WRM1</cas:user>
	</cas:authenticationSuccess>
</cas:serviceResponse>`

const failureXML = `<cas:serviceResponse xmlns:cas="http://www.yale.edu/tp/cas">
	<cas:authenticationFailure code="INVALID_TICKET">
		Ticket ST-123 not recognized
	</cas:authenticationFailure>
</cas:serviceResponse>`

func TestClient_ValidateSuccess(t *testing.T) {
	t.Parallel()

	var gotTicket, gotService string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTicket = r.URL.Query().Get("ticket")
		gotService = r.URL.Query().Get("service")
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(successXML))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "https://carpool.riceapps.org/auth", nil)
	netid, err := c.Validate(context.Background(), "ST-123")
	if err != nil {
		t.Fatalf("Validate err=%v", err)
	}
	if netid != "WRM1" {
		t.Fatalf("netid=%q, want WRM1", netid)
	}
	if gotTicket != "ST-123" || gotService != "https://carpool.riceapps.org/auth" {
		t.Fatalf("ticket=%q service=%q", gotTicket, gotService)
	}
}

func TestClient_ValidateFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(failureXML))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "https://carpool.riceapps.org/auth", nil)
	_, err := c.Validate(context.Background(), "ST-123")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err=%v, want ErrAuthenticationFailed", err)
	}
}

func TestClient_ValidateGarbageResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not cas</html>`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "https://carpool.riceapps.org/auth", nil)
	_, err := c.Validate(context.Background(), "ST-123")
	if err == nil || errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("err=%v, want parse error distinct from auth failure", err)
	}
}
