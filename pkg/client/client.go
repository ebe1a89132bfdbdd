// Package client es el cliente HTTP del daemon de verificación. Lo
// usan los subcomandos de icheck y puede importarse desde otras
// herramientas.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL es la dirección del daemon si no se configura otra
const DefaultBaseURL = "http://127.0.0.1:8000"

// GetDefaultBaseURL retorna la URL del daemon, respetando
// ICHECKD_ADDR si está definida
func GetDefaultBaseURL() string {
	if addr := os.Getenv("ICHECKD_ADDR"); addr != "" {
		if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
			return strings.TrimRight(addr, "/")
		}
		return "http://" + addr
	}
	return DefaultBaseURL
}

// Client representa un cliente del daemon
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient crea un cliente contra una URL base personalizada
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewDefaultClient crea un cliente contra la URL por defecto
func NewDefaultClient() *Client {
	return NewClient(GetDefaultBaseURL())
}

// Response es el sobre JSON de las respuestas del daemon
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Job es la proyección de un trabajo que expone el daemon
type Job struct {
	ID               string     `json:"id"`
	Filename         string     `json:"filename"`
	Status           string     `json:"status"`
	Progress         int        `json:"progress"`
	Total            int        `json:"total"`
	CurrentAccount   string     `json:"current_account,omitempty"`
	InstagramAccount string     `json:"instagram_account,omitempty"`
	ResultFile       string     `json:"result_file,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// QueueState es la respuesta de GET /queue
type QueueState struct {
	Queued  []Job `json:"queued"`
	Count   int   `json:"count"`
	Running *Job  `json:"running,omitempty"`
}

// DaemonStatus es la respuesta de GET /status
type DaemonStatus struct {
	Jobs             map[string]int `json:"jobs"`
	AccountUsage     map[string]int `json:"account_usage"`
	MaxFollowsPerDay int            `json:"max_follows_per_day"`
	Log              []string       `json:"log"`
	Running          *Job           `json:"running,omitempty"`
}

// FileListing es la respuesta de GET /results y GET /uploads
type FileListing struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w (is daemon running?)", err)
	}
	defer resp.Body.Close()

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.Success {
		return fmt.Errorf("daemon error: %s", envelope.Error)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", out)
}

// Ping comprueba que el daemon responde
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil, "", nil)
}

// Upload sube un CSV de cuentas objetivo. Retorna el nombre con el que
// quedó guardado.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finish upload: %w", err)
	}

	var out struct {
		Filename string `json:"filename"`
	}
	if err := c.do(ctx, http.MethodPost, "/upload", &buf, w.FormDataContentType(), &out); err != nil {
		return "", err
	}
	return out.Filename, nil
}

// Start encola un trabajo para un archivo ya subido
func (c *Client) Start(ctx context.Context, filename string) (*Job, error) {
	var job Job
	payload := map[string]string{"filename": filename}
	if err := c.postJSON(ctx, "/start", payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Queue retorna la cola actual
func (c *Client) Queue(ctx context.Context) (*QueueState, error) {
	var state QueueState
	if err := c.do(ctx, http.MethodGet, "/queue", nil, "", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Status retorna el estado del daemon
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var status DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/status", nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Job retorna el detalle de un trabajo
func (c *Client) Job(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+id, nil, "", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Cancel cancela un trabajo por ID (encolado o en ejecución)
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/queue/"+id, nil, "", nil)
}

// Stop cancela el trabajo en ejecución
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stop", nil, "", nil)
}

// ListResults lista los archivos de resultados disponibles
func (c *Client) ListResults(ctx context.Context) (*FileListing, error) {
	var listing FileListing
	if err := c.do(ctx, http.MethodGet, "/results", nil, "", &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListUploads lista los archivos subidos
func (c *Client) ListUploads(ctx context.Context) (*FileListing, error) {
	var listing FileListing
	if err := c.do(ctx, http.MethodGet, "/uploads", nil, "", &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// DownloadResult descarga un archivo de resultados a destPath
func (c *Client) DownloadResult(ctx context.Context, filename, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/results/"+filename, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope Response
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
			return fmt.Errorf("daemon error: %s", envelope.Error)
		}
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return f.Close()
}
