package waflow_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pedalpoint/api/pkg/waflow"
)

func TestParseResponse_SuccessFlag(t *testing.T) {
	result := waflow.ParseResponse(200, []byte(`{"success": true, "message": "delivered", "message_id": "wamid.123"}`))
	if !result.OK {
		t.Error("expected OK")
	}
	if result.MessageID != "wamid.123" {
		t.Errorf("message_id: got %q, want wamid.123", result.MessageID)
	}
	if result.Ambiguous {
		t.Error("recognized shape must not be ambiguous")
	}
}

func TestParseResponse_SuccessFlagFalse(t *testing.T) {
	result := waflow.ParseResponse(200, []byte(`{"success": false, "message": "invalid phone"}`))
	if result.OK {
		t.Error("expected failure")
	}
	if result.Message != "invalid phone" {
		t.Errorf("message: got %q, want 'invalid phone'", result.Message)
	}
}

func TestParseResponse_StatusString(t *testing.T) {
	cases := []struct {
		body   string
		wantOK bool
	}{
		{`{"status": "success", "msg": "done"}`, true},
		{`{"status": "SENT"}`, true},
		{`{"status": "queued", "message_id": "q-1"}`, true},
		{`{"status": "error", "message": "template missing"}`, false},
		{`{"status": "failed"}`, false},
	}
	for _, tc := range cases {
		result := waflow.ParseResponse(200, []byte(tc.body))
		if result.OK != tc.wantOK {
			t.Errorf("body %s: OK got %v, want %v", tc.body, result.OK, tc.wantOK)
		}
		if result.Ambiguous {
			t.Errorf("body %s: unexpectedly ambiguous", tc.body)
		}
	}
}

func TestParseResponse_SentID(t *testing.T) {
	result := waflow.ParseResponse(200, []byte(`{"sent": true, "id": "abc"}`))
	if !result.OK || result.MessageID != "abc" {
		t.Errorf("got %+v, want OK with id abc", result)
	}
}

func TestParseResponse_ErrorEnvelope(t *testing.T) {
	for _, body := range []string{
		`{"error": "flow disabled"}`,
		`{"error": {"message": "flow disabled"}}`,
	} {
		result := waflow.ParseResponse(200, []byte(body))
		if result.OK {
			t.Errorf("body %s: expected failure", body)
		}
		if result.Message != "flow disabled" {
			t.Errorf("body %s: message got %q", body, result.Message)
		}
	}
}

func TestParseResponse_ArrayWrapped(t *testing.T) {
	result := waflow.ParseResponse(200, []byte(`[{"success": true, "id": "wrapped-1"}]`))
	if !result.OK || result.MessageID != "wrapped-1" {
		t.Errorf("got %+v, want OK with id wrapped-1", result)
	}
}

func TestParseResponse_AmbiguousSuccess(t *testing.T) {
	result := waflow.ParseResponse(200, []byte(`Accepted`))
	if !result.OK {
		t.Error("2xx with unknown body should be treated as sent")
	}
	if !result.Ambiguous {
		t.Error("unknown shape must be flagged ambiguous")
	}
}

func TestParseResponse_NonJSONError(t *testing.T) {
	result := waflow.ParseResponse(500, []byte(`Internal Server Error`))
	if result.OK {
		t.Error("5xx must be a failure")
	}
	if result.Message != "Internal Server Error" {
		t.Errorf("message: got %q", result.Message)
	}
}

func TestSend_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "message_id": "wamid.1"}`))
	}))
	defer srv.Close()

	client := waflow.NewClient(srv.URL+"/hooks/send", 5*time.Second)
	result, err := client.Send(context.Background(), waflow.SendRequest{
		Phone:        "+919876543210",
		CustomerName: "Asha",
		BikeName:     "Trek FX 3",
		OrderNumber:  "PDL-042",
		OrderURL:     "https://orders.example.com/o/x1y2z3",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !result.OK || result.MessageID != "wamid.1" {
		t.Errorf("got %+v, want OK with wamid.1", result)
	}
	if gotPath != "/hooks/send" {
		t.Errorf("path: got %q", gotPath)
	}
}

func TestSend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	client := waflow.NewClient(srv.URL, 50*time.Millisecond)
	_, err := client.Send(context.Background(), waflow.SendRequest{Phone: "+911234567890"})
	if !errors.Is(err, waflow.ErrTimeout) {
		t.Errorf("got %v, want ErrTimeout", err)
	}
}

func TestSend_NetworkError(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := waflow.NewClient(url, time.Second)
	_, err := client.Send(context.Background(), waflow.SendRequest{Phone: "+911234567890"})
	if err == nil {
		t.Fatal("expected network error")
	}
	if errors.Is(err, waflow.ErrTimeout) {
		t.Error("connection refused must not classify as timeout")
	}
}
