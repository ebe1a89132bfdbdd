package uia2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// setupMockServer levanta un servidor que imita las respuestas del
// servidor UIAutomator2 (sobre {"value": ...})
func setupMockServer(t *testing.T, handlers map[string]func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		// Quitar el prefijo /session/xxx para simplificar el routing
		if strings.HasPrefix(path, "/session/") {
			parts := strings.SplitN(path[len("/session/"):], "/", 2)
			if len(parts) > 1 {
				path = "/" + parts[1]
			} else {
				path = "/"
			}
		}

		if handler, ok := handlers[r.Method+" "+path]; ok {
			handler(w, r)
			return
		}

		t.Logf("unhandled request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": map[string]string{"error": "unknown command"},
		})
	}))
}

func newTestClient(serverURL string) *Client {
	c := NewClient(serverURL)
	c.SetSession("test-session")
	return c
}

func TestCreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/session" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["capabilities"]; !ok {
			t.Error("expected capabilities in request body")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": map[string]interface{}{"sessionId": "abc-123"},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	err := c.CreateSession(context.Background(), Capabilities{
		DeviceName:  "redroid:5555",
		AppPackage:  "com.instagram.android",
		AppActivity: "com.instagram.mainactivity.LauncherActivity",
		NoReset:     true,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if c.SessionID() != "abc-123" {
		t.Errorf("expected session abc-123, got %q", c.SessionID())
	}
}

func TestSource(t *testing.T) {
	server := setupMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"GET /source": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": "<hierarchy><node text=\"Follow\"/></hierarchy>",
			})
		},
	})
	defer server.Close()

	c := newTestClient(server.URL)
	src, err := c.Source(context.Background())
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if !strings.Contains(src, "Follow") {
		t.Errorf("expected Follow in source, got %q", src)
	}
}

func TestFindElementLegacyRef(t *testing.T) {
	server := setupMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"POST /element": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": map[string]string{"ELEMENT": "elem-123"},
			})
		},
	})
	defer server.Close()

	c := newTestClient(server.URL)
	el, err := c.FindElement(context.Background(), ByID, "com.instagram.android:id/profile_header_follow_button")
	if err != nil {
		t.Fatalf("FindElement failed: %v", err)
	}
	if el.ID != "elem-123" {
		t.Errorf("expected elem-123, got %q", el.ID)
	}
}

func TestFindElementW3CRef(t *testing.T) {
	server := setupMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"POST /element": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": map[string]string{"element-6066-11e4-a52e-4f735466cecf": "elem-w3c"},
			})
		},
	})
	defer server.Close()

	c := newTestClient(server.URL)
	el, err := c.FindElement(context.Background(), ByUiAutomator, `new UiSelector().textContains("Follow")`)
	if err != nil {
		t.Fatalf("FindElement failed: %v", err)
	}
	if el.ID != "elem-w3c" {
		t.Errorf("expected elem-w3c, got %q", el.ID)
	}
}

func TestFindElementNotFound(t *testing.T) {
	server := setupMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"POST /element": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": map[string]string{
					"error":   "no such element",
					"message": "An element could not be located",
				},
			})
		},
	})
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.FindElement(context.Background(), ByID, "missing")
	if !errors.Is(err, ErrNoSuchElement) {
		t.Errorf("expected ErrNoSuchElement, got %v", err)
	}
}

func TestClickError(t *testing.T) {
	server := setupMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"POST /element/elem-1/click": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": map[string]string{"error": "unknown error", "message": "click failed"},
			})
		},
	})
	defer server.Close()

	c := newTestClient(server.URL)
	err := c.Click(context.Background(), "elem-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("expected http 500, got %d", apiErr.HTTPStatus)
	}
}

func TestScreenshotDecodesBase64(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	server := setupMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"GET /screenshot": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": base64.StdEncoding.EncodeToString(png),
			})
		},
	})
	defer server.Close()

	c := newTestClient(server.URL)
	data, err := c.Screenshot(context.Background())
	if err != nil {
		t.Fatalf("Screenshot failed: %v", err)
	}
	if string(data) != string(png) {
		t.Errorf("decoded screenshot mismatch: %v", data)
	}
}

func TestWindowSize(t *testing.T) {
	server := setupMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"GET /window/rect": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"value": map[string]int{"x": 0, "y": 0, "width": 1080, "height": 2400},
			})
		},
	})
	defer server.Close()

	c := newTestClient(server.URL)
	w, h, err := c.WindowSize(context.Background())
	if err != nil {
		t.Fatalf("WindowSize failed: %v", err)
	}
	if w != 1080 || h != 2400 {
		t.Errorf("expected 1080x2400, got %dx%d", w, h)
	}
}

func TestTapSendsActions(t *testing.T) {
	var got map[string]interface{}
	server := setupMockServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"POST /actions": func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(map[string]interface{}{"value": nil})
		},
	})
	defer server.Close()

	c := newTestClient(server.URL)
	if err := c.Tap(context.Background(), 540, 580); err != nil {
		t.Fatalf("Tap failed: %v", err)
	}
	if _, ok := got["actions"]; !ok {
		t.Error("expected actions in request body")
	}
}
