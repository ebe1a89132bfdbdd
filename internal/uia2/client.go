// Package uia2 implementa un cliente mínimo del servidor Appium
// UIAutomator2. Solo cubre los endpoints que el checker necesita:
// sesión, source, búsqueda de elementos, click, tap, screenshot.
package uia2

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoSuchElement se retorna cuando el selector no encontró nada
var ErrNoSuchElement = errors.New("uia2: no such element")

// Estrategias de localización soportadas por el servidor UIAutomator2
const (
	ByID          = "id"
	ByUiAutomator = "-android uiautomator"
	ByXPath       = "xpath"
)

// Element referencia un elemento de UI dentro de la sesión actual
type Element struct {
	ID string
}

// Capabilities describe la sesión a crear contra el dispositivo
type Capabilities struct {
	DeviceName            string
	AppPackage            string
	AppActivity           string
	NoReset               bool
	AutoGrantPermissions  bool
	NewCommandTimeoutSecs int
}

// Client habla el protocolo WebDriver del servidor UIAutomator2.
// Todas las respuestas vienen envueltas en {"value": ...}.
type Client struct {
	baseURL   string
	sessionID string
	http      *http.Client
}

// NewClient crea un cliente apuntando al servidor Appium (p.ej.
// http://appium:4723)
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			// El volcado de pantalla y la creación de sesión son lentos
			// en emuladores; margen amplio
			Timeout: 120 * time.Second,
		},
	}
}

// SetBaseURL reapunta el cliente (tests)
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// SetSession fija el id de sesión sin crearla (tests)
func (c *Client) SetSession(id string) { c.sessionID = id }

// SessionID retorna el id de la sesión activa, o vacío
func (c *Client) SessionID() string { return c.sessionID }

// APIError representa una respuesta de error del servidor
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("uia2: %s (%s, http %d)", e.Message, e.Code, e.HTTPStatus)
}

// valueEnvelope es el sobre estándar del protocolo
type valueEnvelope struct {
	Value json.RawMessage `json:"value"`
}

type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uia2 request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode envelope: %w (body: %.200s)", err, data)
	}

	if resp.StatusCode >= 400 {
		var we wireError
		_ = json.Unmarshal(env.Value, &we)
		if we.Error == "no such element" {
			return ErrNoSuchElement
		}
		msg := we.Message
		if msg == "" {
			msg = string(env.Value)
		}
		return &APIError{HTTPStatus: resp.StatusCode, Code: we.Error, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(env.Value, out); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
	}
	return nil
}

func (c *Client) session(path string) string {
	return "/session/" + c.sessionID + path
}

// CreateSession abre una sesión W3C contra el dispositivo
func (c *Client) CreateSession(ctx context.Context, caps Capabilities) error {
	req := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": map[string]interface{}{
				"platformName":                "Android",
				"appium:automationName":       "UiAutomator2",
				"appium:deviceName":           caps.DeviceName,
				"appium:appPackage":           caps.AppPackage,
				"appium:appActivity":          caps.AppActivity,
				"appium:noReset":              caps.NoReset,
				"appium:autoGrantPermissions": caps.AutoGrantPermissions,
				"appium:newCommandTimeout":    caps.NewCommandTimeoutSecs,
			},
		},
	}

	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.do(ctx, http.MethodPost, "/session", req, &out); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if out.SessionID == "" {
		return fmt.Errorf("create session: server returned empty sessionId")
	}
	c.sessionID = out.SessionID
	return nil
}

// DeleteSession cierra la sesión actual
func (c *Client) DeleteSession(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	err := c.do(ctx, http.MethodDelete, "/session/"+c.sessionID, nil, nil)
	c.sessionID = ""
	return err
}

// Status consulta la salud del servidor. Solo cubre el proceso
// servidor, no dice nada sobre la sesión.
func (c *Client) Status(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/status", nil, nil)
}

// Source retorna el XML completo de la pantalla actual. Es costoso:
// no llamar en bucle cerrado sin pausa.
func (c *Client) Source(ctx context.Context) (string, error) {
	var src string
	if err := c.do(ctx, http.MethodGet, c.session("/source"), nil, &src); err != nil {
		return "", err
	}
	return src, nil
}

// elementRef acepta los dos formatos de referencia del protocolo
type elementRef struct {
	Legacy string `json:"ELEMENT"`
	W3C    string `json:"element-6066-11e4-a52e-4f735466cecf"`
}

func (r elementRef) id() string {
	if r.W3C != "" {
		return r.W3C
	}
	return r.Legacy
}

// FindElement localiza un elemento con la estrategia dada.
// Retorna ErrNoSuchElement si no existe.
func (c *Client) FindElement(ctx context.Context, strategy, selector string) (*Element, error) {
	req := map[string]string{"using": strategy, "value": selector}

	var ref elementRef
	if err := c.do(ctx, http.MethodPost, c.session("/element"), req, &ref); err != nil {
		return nil, err
	}
	if ref.id() == "" {
		return nil, ErrNoSuchElement
	}
	return &Element{ID: ref.id()}, nil
}

// Click pulsa un elemento previamente localizado
func (c *Client) Click(ctx context.Context, elementID string) error {
	return c.do(ctx, http.MethodPost, c.session("/element/"+elementID+"/click"), struct{}{}, nil)
}

// ElementText retorna el texto visible del elemento
func (c *Client) ElementText(ctx context.Context, elementID string) (string, error) {
	var text string
	if err := c.do(ctx, http.MethodGet, c.session("/element/"+elementID+"/text"), nil, &text); err != nil {
		return "", err
	}
	return text, nil
}

// ElementAttr retorna un atributo del elemento (content-desc, displayed...)
func (c *Client) ElementAttr(ctx context.Context, elementID, name string) (string, error) {
	var val string
	if err := c.do(ctx, http.MethodGet, c.session("/element/"+elementID+"/attribute/"+name), nil, &val); err != nil {
		return "", err
	}
	return val, nil
}

// Displayed retorna true si el elemento está visible
func (c *Client) Displayed(ctx context.Context, elementID string) bool {
	v, err := c.ElementAttr(ctx, elementID, "displayed")
	return err == nil && v == "true"
}

// Tap pulsa una coordenada absoluta mediante acciones W3C
func (c *Client) Tap(ctx context.Context, x, y int) error {
	req := map[string]interface{}{
		"actions": []interface{}{
			map[string]interface{}{
				"type": "pointer",
				"id":   "finger1",
				"parameters": map[string]string{
					"pointerType": "touch",
				},
				"actions": []interface{}{
					map[string]interface{}{"type": "pointerMove", "duration": 0, "x": x, "y": y},
					map[string]interface{}{"type": "pointerDown", "button": 0},
					map[string]interface{}{"type": "pause", "duration": 100},
					map[string]interface{}{"type": "pointerUp", "button": 0},
				},
			},
		},
	}
	return c.do(ctx, http.MethodPost, c.session("/actions"), req, nil)
}

// Screenshot captura la pantalla y retorna el PNG decodificado
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	var b64 string
	if err := c.do(ctx, http.MethodGet, c.session("/screenshot"), nil, &b64); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return data, nil
}

// WindowSize retorna el tamaño de la ventana actual
func (c *Client) WindowSize(ctx context.Context) (width, height int, err error) {
	var rect struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := c.do(ctx, http.MethodGet, c.session("/window/rect"), nil, &rect); err != nil {
		return 0, 0, err
	}
	return rect.Width, rect.Height, nil
}

// Back envía la tecla atrás de Android
func (c *Client) Back(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.session("/back"), struct{}{}, nil)
}

// SendKeys escribe texto en un elemento
func (c *Client) SendKeys(ctx context.Context, elementID, text string) error {
	req := map[string]string{"text": text}
	return c.do(ctx, http.MethodPost, c.session("/element/"+elementID+"/value"), req, nil)
}

// Clear borra el contenido de un campo de texto
func (c *Client) Clear(ctx context.Context, elementID string) error {
	return c.do(ctx, http.MethodPost, c.session("/element/"+elementID+"/clear"), struct{}{}, nil)
}
