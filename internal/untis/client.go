package untis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "untisbot/internal/log"
	"untisbot/internal/model"
)

const (
	defaultTimeout = 15 * time.Second
	rpcPath        = "/WebUntis/jsonrpc.do"
	userAgent      = "untisbot/0.1"
)

var (
	// ErrNotLoggedIn is returned by authenticated calls made without a session.
	ErrNotLoggedIn = errors.New("untis: not logged in")
	// ErrSessionInvalid is returned when the server no longer accepts the session.
	ErrSessionInvalid = errors.New("untis: session is not valid")
	// ErrLoginFailed is returned when authenticate yields no usable session.
	ErrLoginFailed = errors.New("untis: login failed")
	// ErrNoResult is returned when a response carries neither result nor error.
	ErrNoResult = errors.New("untis: server returned no result")
)

// RPCError is an error reported by the server, either as a JSON-RPC error
// object or as a numeric code inside the result.
type RPCError struct {
	Method  string `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("untis: %s returned error code %d", e.Method, e.Code)
	}
	return fmt.Sprintf("untis: %s returned error code %d: %s", e.Method, e.Code, e.Message)
}

// Config holds what is needed to talk to one school's WebUntis instance.
type Config struct {
	// Server is the host (e.g. "mese.webuntis.com") or a full base URL.
	Server   string
	School   string
	Username string
	Password string

	// Identity is sent as JSON-RPC id and client name. A random UUID is
	// used when empty.
	Identity string

	// Timeout bounds each HTTP request. Zero means defaultTimeout.
	Timeout time.Duration
}

// Session is the authenticate result.
type Session struct {
	SessionID  string `json:"sessionId"`
	PersonType int    `json:"personType"`
	PersonID   int    `json:"personId"`
	KlasseID   int    `json:"klasseId"`
}

// Client is a WebUntis JSON-RPC session client.
type Client struct {
	cfg     Config
	baseURL string
	client  *http.Client

	mu      sync.Mutex
	session *Session
}

// New creates a Client. It does not contact the server.
func New(cfg Config) *Client {
	if cfg.Identity == "" {
		cfg.Identity = uuid.NewString()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	base := strings.TrimRight(cfg.Server, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	return &Client{
		cfg:     cfg,
		baseURL: base,
		client: &http.Client{
			Timeout: cfg.Timeout,
			// WebUntis answers expired sessions with redirects; surface them.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Session returns the current session, or nil when logged out.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Login authenticates and stores the session for later calls.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	params := map[string]string{
		"user":     c.cfg.Username,
		"password": c.cfg.Password,
		"client":   c.cfg.Identity,
	}

	var sess Session
	if err := c.call(ctx, "authenticate", params, false, &sess); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) || errors.Is(err, ErrNoResult) {
			return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
		}
		return nil, err
	}
	if sess.SessionID == "" {
		return nil, fmt.Errorf("%w: no session id", ErrLoginFailed)
	}

	c.mu.Lock()
	c.session = &sess
	c.mu.Unlock()

	appLog.Info("untis login ok", "school", c.cfg.School, "person_id", sess.PersonID, "person_type", sess.PersonType)
	return &sess, nil
}

// Logout ends the session. The local session is cleared even on error.
func (c *Client) Logout(ctx context.Context) error {
	if c.Session() == nil {
		return nil
	}
	var ignored json.RawMessage
	err := c.call(ctx, "logout", struct{}{}, true, &ignored)

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	if errors.Is(err, ErrNoResult) {
		// logout answers with a null result
		return nil
	}
	return err
}

// LatestImportTime returns the server's last data import as Unix millis.
func (c *Client) LatestImportTime(ctx context.Context) (int64, error) {
	var ts int64
	if err := c.call(ctx, "getLatestImportTime", struct{}{}, true, &ts); err != nil {
		return 0, err
	}
	return ts, nil
}

// ValidateSession reports whether the server still accepts the session.
func (c *Client) ValidateSession(ctx context.Context) (bool, error) {
	if c.Session() == nil {
		return false, nil
	}
	_, err := c.LatestImportTime(ctx)
	if err == nil {
		return true, nil
	}
	var rpcErr *RPCError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &rpcErr) || errors.As(err, &typeErr) || errors.Is(err, ErrNoResult) {
		return false, nil
	}
	return false, err
}

type timetableElement struct {
	ID   int `json:"id"`
	Type int `json:"type"`
}

type timetableOptions struct {
	Element          timetableElement `json:"element"`
	StartDate        int              `json:"startDate"`
	EndDate          int              `json:"endDate"`
	ShowLsText       bool             `json:"showLsText"`
	ShowStudentgroup bool             `json:"showStudentgroup"`
	ShowLsNumber     bool             `json:"showLsNumber"`
	ShowSubstText    bool             `json:"showSubstText"`
	ShowInfo         bool             `json:"showInfo"`
	ShowBooking      bool             `json:"showBooking"`
	KlasseFields     []string         `json:"klasseFields"`
	RoomFields       []string         `json:"roomFields"`
	SubjectFields    []string         `json:"subjectFields"`
	TeacherFields    []string         `json:"teacherFields"`
}

var elementFields = []string{"id", "name", "longname", "externalkey"}

// Timetable fetches the logged-in person's lessons for one day, in the
// order the server returns them.
func (c *Client) Timetable(ctx context.Context, day time.Time) ([]model.Lesson, error) {
	sess := c.Session()
	if sess == nil {
		return nil, ErrNotLoggedIn
	}

	date := model.DateInt(day)
	params := map[string]timetableOptions{
		"options": {
			Element:          timetableElement{ID: sess.PersonID, Type: sess.PersonType},
			StartDate:        date,
			EndDate:          date,
			ShowLsText:       true,
			ShowStudentgroup: true,
			ShowLsNumber:     true,
			ShowSubstText:    true,
			ShowInfo:         true,
			ShowBooking:      true,
			KlasseFields:     elementFields,
			RoomFields:       elementFields,
			SubjectFields:    elementFields,
			TeacherFields:    elementFields,
		},
	}

	var lessons []model.Lesson
	if err := c.call(ctx, "getTimetable", params, true, &lessons); err != nil {
		return nil, err
	}
	appLog.Debug("untis timetable fetched", "date", date, "lessons", len(lessons))
	return lessons, nil
}

// Holidays returns all holidays known to the school.
func (c *Client) Holidays(ctx context.Context) ([]model.Holiday, error) {
	var out []model.Holiday
	if err := c.call(ctx, "getHolidays", struct{}{}, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type rpcRequest struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	JSONRPC string `json:"jsonrpc"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, authed bool, out any) error {
	body, err := json.Marshal(rpcRequest{
		ID:      c.cfg.Identity,
		Method:  method,
		Params:  params,
		JSONRPC: "2.0",
	})
	if err != nil {
		return err
	}

	endpoint := c.baseURL + rpcPath + "?school=" + url.QueryEscape(c.cfg.School)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	if authed {
		sess := c.Session()
		if sess == nil {
			return ErrNotLoggedIn
		}
		req.Header.Set("Cookie", c.cookies(sess))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("untis: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return fmt.Errorf("untis: %s: redirected (%s): %w", method, resp.Status, ErrSessionInvalid)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("untis: %s: unexpected status %s", method, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("untis: %s: read body: %w", method, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("untis: %s: failed to parse server response: %w", method, err)
	}
	if rpcResp.Error != nil {
		rpcResp.Error.Method = method
		return rpcResp.Error
	}

	result := bytes.TrimSpace(rpcResp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return ErrNoResult
	}

	// Some calls report failures as {"code": N} inside the result.
	if result[0] == '{' {
		var probe struct {
			Code int `json:"code"`
		}
		if err := json.Unmarshal(result, &probe); err == nil && probe.Code != 0 {
			return &RPCError{Method: method, Code: probe.Code}
		}
	}

	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("untis: %s: decode result: %w", method, err)
	}
	return nil
}

// cookies builds the session cookie header WebUntis expects.
func (c *Client) cookies(sess *Session) string {
	school := "_" + base64.StdEncoding.EncodeToString([]byte(c.cfg.School))
	return "JSESSIONID=" + url.QueryEscape(sess.SessionID) + "; schoolname=" + url.QueryEscape(school)
}
