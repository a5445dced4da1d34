package execution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/dns"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultTimeout      = 30 * time.Second
)

// Judge0 status ids.
const (
	StatusInQueue    = 1
	StatusProcessing = 2
	StatusAccepted   = 3
)

var (
	ErrExecutionTimeout = errors.New("execution timed out")
	ErrServiceFailure   = errors.New("execution service error")
)

// languageIDs maps room languages to Judge0 language ids. Languages
// missing here cannot be executed.
var languageIDs = map[protocol.Language]int{
	protocol.LanguageJavaScript: 63,
	protocol.LanguageJava:       62,
	protocol.LanguageCpp:        54,
	protocol.LanguagePython:     71,
	protocol.LanguageTypeScript: 74,
	protocol.LanguageGo:         60,
}

// LanguageID returns the Judge0 id for lang.
func LanguageID(lang protocol.Language) (int, bool) {
	id, ok := languageIDs[lang]
	return id, ok
}

// Result is the outcome of one run. Success is false for compile errors,
// runtime errors and unsupported languages alike; Output holds whatever
// diagnostics are available.
type Result struct {
	Success  bool
	StatusID int
	Status   string
	Stdout   string
	Stderr   string
	Compile  string
	Duration time.Duration
}

// Output is the text shown in the output panel.
func (r Result) Output() string {
	var parts []string
	for _, s := range []string{r.Stdout, r.Compile, r.Stderr} {
		if s = strings.TrimRight(s, "\n"); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return r.Status
	}
	return strings.Join(parts, "\n")
}

// Submission is the result of Poll.
type Submission struct {
	StatusID      int
	Status        string
	Stdout        string
	Stderr        string
	CompileOutput string
}

// Pending reports whether Judge0 is still working on the submission.
func (s Submission) Pending() bool {
	return s.StatusID == StatusInQueue || s.StatusID == StatusProcessing
}

// Client talks to a Judge0 compatible service.
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	pollInterval time.Duration
	timeout      time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithTimeout bounds a whole Run.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithAuthToken sets the X-Auth-Token header sent with every request.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: dns.DialContext,
				Proxy:       http.ProxyFromEnvironment,
			},
		},
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitRequest struct {
	LanguageID int    `json:"language_id"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin,omitempty"`
}

type submitResponse struct {
	Token string `json:"token"`
}

type pollResponse struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// Submit queues base64 encoded source and stdin and returns the token.
func (c *Client) Submit(ctx context.Context, languageID int, source, stdin string) (string, error) {
	body, err := json.Marshal(submitRequest{
		LanguageID: languageID,
		SourceCode: base64.StdEncoding.EncodeToString([]byte(source)),
		Stdin:      base64.StdEncoding.EncodeToString([]byte(stdin)),
	})
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/submissions?base64_encoded=true&wait=false", body, &resp); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("submit: %w: empty token", ErrServiceFailure)
	}
	return resp.Token, nil
}

// Poll fetches the current state of a submission.
func (c *Client) Poll(ctx context.Context, token string) (Submission, error) {
	var resp pollResponse
	path := "/submissions/" + token + "?base64_encoded=true&fields=stdout,stderr,compile_output,status"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Submission{}, fmt.Errorf("poll: %w", err)
	}

	sub := Submission{
		StatusID: resp.Status.ID,
		Status:   resp.Status.Description,
	}
	var err error
	if sub.Stdout, err = decode(resp.Stdout); err != nil {
		return Submission{}, err
	}
	if sub.Stderr, err = decode(resp.Stderr); err != nil {
		return Submission{}, err
	}
	if sub.CompileOutput, err = decode(resp.CompileOutput); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// Run executes source in lang, polling until a final status or the
// configured timeout. Unsupported languages produce a failed Result rather
// than an error; errors are reserved for transport problems and timeouts.
func (c *Client) Run(ctx context.Context, lang protocol.Language, source, stdin string) (Result, error) {
	languageID, ok := LanguageID(lang)
	if !ok {
		return Result{
			Status: "Unsupported language",
			Stderr: fmt.Sprintf("%s cannot be executed", lang),
		}, nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.Submit(ctx, languageID, source, stdin)
	if err != nil {
		return Result{}, c.timeoutErr(ctx, err)
	}
	slog.Debug("submission queued", "token", token, "language", lang)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		sub, err := c.Poll(ctx, token)
		if err != nil {
			return Result{}, c.timeoutErr(ctx, err)
		}
		if !sub.Pending() {
			return Result{
				Success:  sub.StatusID == StatusAccepted,
				StatusID: sub.StatusID,
				Status:   sub.Status,
				Stdout:   sub.Stdout,
				Stderr:   sub.Stderr,
				Compile:  sub.CompileOutput,
				Duration: time.Since(start),
			}, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return Result{}, c.timeoutErr(ctx, ctx.Err())
		}
	}
}

func (c *Client) timeoutErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrExecutionTimeout, c.timeout)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && ctx.Err() == nil {
			return fmt.Errorf("%w: %v", ErrServiceFailure, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", ErrServiceFailure, resp.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decode(s *string) (string, error) {
	if s == nil {
		return "", nil
	}
	// Judge0 wraps base64 output at 76 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(*s, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("%w: bad base64 output: %v", ErrServiceFailure, err)
	}
	return string(raw), nil
}
