// Command wk is an operator CLI for the warranty lifecycle HTTP API.
package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/warranty-keeper/internal/model"
	httpserver "github.com/and161185/warranty-keeper/internal/server/http"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "warranty-keeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "warranty-keeper")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	if v := os.Getenv("WK_TOKEN"); v != "" {
		return v, nil
	}
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (run `wk token` or set WK_TOKEN)")
	}
	return tf.AccessToken, nil
}

// tokenExpiry reads exp from a JWT without verifying it; the server does that.
func tokenExpiry(raw string, fallback time.Time) time.Time {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(raw, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return fallback
	}
	return claims.ExpiresAt.Time
}

// ---- http client ----

type client struct {
	base  string
	http  *http.Client
	token string
}

// apiError mirrors the server's error envelope.
type apiError struct {
	Status  int      `json:"-"`
	Code    string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("http %d: %s", e.Status, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	for _, d := range e.Details {
		msg += "\n  " + d
	}
	return msg
}

func loadTLS(caPath string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // dev flag
	}
	if caPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func newClient(base, caPath string, insecure bool, token string) (*client, error) {
	tc, err := loadTLS(caPath, insecure)
	if err != nil {
		return nil, err
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if tc != nil {
		tr.TLSClientConfig = tc
	}
	return &client{
		base:  strings.TrimRight(base, "/"),
		http:  &http.Client{Transport: tr, Timeout: 30 * time.Second},
		token: token,
	}, nil
}

// do sends body as JSON (raw bytes are sent as-is) and decodes a 2xx reply into out.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		ae := &apiError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(ae); err != nil || ae.Code == "" {
			ae.Code = http.StatusText(resp.StatusCode)
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			ae.Message = strings.TrimSpace(ae.Message + " (retry after " + ra + "s)")
		}
		return ae
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// resource maps -kind to its collection path.
func resource(kind string) (string, error) {
	switch kind {
	case "warranty", "":
		return "/warranties", nil
	case "inspection":
		return "/inspections", nil
	default:
		return "", fmt.Errorf("unknown kind %q (warranty|inspection)", kind)
	}
}

func needID(id string) {
	if _, err := uuid.FromString(id); err != nil {
		fmt.Fprintln(os.Stderr, "need -id <uuid>")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `wk CLI
Usage:
  wk -addr URL [-cacert file | -insecure] <cmd> [args]

Commands:
  version
  token        -key <secret> -sub <id> -role ADMIN [-ttl 1h]   (mints and saves a dev token)
  create       -kind warranty|inspection -file <json>
  get          -kind warranty|inspection -id <uuid>
  submit       -kind warranty|inspection -id <uuid>
  history      -kind warranty|inspection -id <uuid>
  eligibility  -id <uuid>
  reinstate    -id <uuid> -reason <text> [-inspection <uuid>] [-notes <text>]
  reinstatements -id <uuid>
  admin-status -kind warranty|inspection -id <uuid> -status <STATUS> -reason <text>
  trigger      -job reminders|grace-period
  decide       -kind warranty|inspection -token <t> -action approve|reject [-reason <text>]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the HTTP API.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch cmd {
	case "version":
		fmt.Printf("wk %s (%s)\n", version, buildDate)
		return
	case "token":
		cmdToken(args)
		return
	case "decide":
		cmdDecide(ctx, args, *addr, *caPath, *insecure)
		return
	}

	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	c, err := newClient(*addr, *caPath, *insecure, token)
	if err != nil {
		fail(err)
	}

	var out any
	switch cmd {
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		kind := fs.String("kind", "warranty", "warranty|inspection")
		file := fs.String("file", "", "request body ('-'=stdin)")
		_ = fs.Parse(args)
		path, err := resource(*kind)
		if err != nil {
			fail(err)
		}
		if *file == "" {
			fmt.Fprintln(os.Stderr, "need -file")
			os.Exit(1)
		}
		body, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		err = c.do(ctx, http.MethodPost, path, body, &out)
		if err != nil {
			fail(err)
		}

	case "get", "submit", "history":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		kind := fs.String("kind", "warranty", "warranty|inspection")
		id := fs.String("id", "", "record id")
		_ = fs.Parse(args)
		needID(*id)
		path, err := resource(*kind)
		if err != nil {
			fail(err)
		}
		path += "/" + *id
		method := http.MethodGet
		switch cmd {
		case "submit":
			method, path = http.MethodPost, path+"/submit"
		case "history":
			path += "/audit-history"
		}
		if err := c.do(ctx, method, path, nil, &out); err != nil {
			fail(err)
		}

	case "eligibility", "reinstatements":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "warranty id")
		_ = fs.Parse(args)
		needID(*id)
		suffix := "/reinstatement-eligibility"
		if cmd == "reinstatements" {
			suffix = "/reinstatements"
		}
		if err := c.do(ctx, http.MethodGet, "/warranties/"+*id+suffix, nil, &out); err != nil {
			fail(err)
		}

	case "reinstate":
		fs := flag.NewFlagSet("reinstate", flag.ExitOnError)
		id := fs.String("id", "", "warranty id")
		reason := fs.String("reason", "", "reason (required)")
		insp := fs.String("inspection", "", "verified inspection id")
		notes := fs.String("notes", "", "notes")
		_ = fs.Parse(args)
		needID(*id)
		body := map[string]any{"reason": *reason, "notes": *notes}
		if *insp != "" {
			body["inspectionId"] = *insp
		}
		if err := c.do(ctx, http.MethodPost, "/warranties/"+*id+"/reinstate", body, &out); err != nil {
			fail(err)
		}

	case "admin-status":
		fs := flag.NewFlagSet("admin-status", flag.ExitOnError)
		kind := fs.String("kind", "warranty", "warranty|inspection")
		id := fs.String("id", "", "record id")
		st := fs.String("status", "", "target status")
		reason := fs.String("reason", "", "reason (required)")
		_ = fs.Parse(args)
		needID(*id)
		path, err := resource(*kind)
		if err != nil {
			fail(err)
		}
		body := map[string]any{"targetStatus": strings.ToUpper(*st), "reason": *reason}
		if err := c.do(ctx, http.MethodPost, "/erps-admin"+path+"/"+*id+"/status", body, &out); err != nil {
			fail(err)
		}

	case "trigger":
		fs := flag.NewFlagSet("trigger", flag.ExitOnError)
		job := fs.String("job", "", "reminders|grace-period")
		_ = fs.Parse(args)
		if *job != "reminders" && *job != "grace-period" {
			fmt.Fprintln(os.Stderr, "need -job reminders|grace-period")
			os.Exit(1)
		}
		if err := c.do(ctx, http.MethodPost, "/"+*job+"/trigger", nil, &out); err != nil {
			fail(err)
		}

	default:
		usage()
	}
	printJSON(out)
}

func cmdToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	key := fs.String("key", os.Getenv("WK_JWT_KEY"), "HS256 signing key")
	sub := fs.String("sub", "", "subject (partner id or admin login)")
	role := fs.String("role", string(model.RoleAdmin), "AGENT|INSTALLER|INSPECTOR|ADMIN")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	_ = fs.Parse(args)
	if *key == "" || *sub == "" {
		fmt.Fprintln(os.Stderr, "need -key and -sub")
		os.Exit(1)
	}
	now := time.Now()
	tok, err := httpserver.SignToken([]byte(*key), model.Actor{ID: *sub, Role: model.Role(strings.ToUpper(*role))}, *ttl, now)
	if err != nil {
		fail(err)
	}
	if err := saveToken(tok, tokenExpiry(tok, now.Add(*ttl))); err != nil {
		fail(err)
	}
	fmt.Println(tok)
}

// cmdDecide answers a verification link on behalf of a partner; it needs no bearer token.
func cmdDecide(ctx context.Context, args []string, addr, caPath string, insecure bool) {
	fs := flag.NewFlagSet("decide", flag.ExitOnError)
	kind := fs.String("kind", "warranty", "warranty|inspection")
	tok := fs.String("token", "", "verification token from the link")
	action := fs.String("action", "", "approve|reject")
	reason := fs.String("reason", "", "rejection reason")
	_ = fs.Parse(args)
	if *tok == "" || *action == "" {
		fmt.Fprintln(os.Stderr, "need -token and -action")
		os.Exit(1)
	}
	path := "/verify-warranty/"
	if *kind == "inspection" {
		path = "/verify-inspection/"
	}
	c, err := newClient(addr, caPath, insecure, "")
	if err != nil {
		fail(err)
	}
	var out any
	body := map[string]any{"action": *action, "rejectionReason": *reason}
	if err := c.do(ctx, http.MethodPost, path+url.PathEscape(*tok), body, &out); err != nil {
		fail(err)
	}
	printJSON(out)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
