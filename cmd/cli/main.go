// Command dc is a CLI client for the DreamColor daemon.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/bekovrafik/DreamColor/internal/api"
	"github.com/bekovrafik/DreamColor/internal/config"
	pkgcrypto "github.com/bekovrafik/DreamColor/internal/crypto"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token,omitempty"`
	Sealed      []byte    `json:"sealed_token,omitempty"` // argon2-sealed when a passphrase is set
	ExpiresAt   time.Time `json:"expires_at,omitzero"`    // zero: no expiry
}

var tokenAAD = []byte("dreamcolor-cli-token")

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "dreamcolor")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dreamcolor")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time, passphrase string) error {
	tf := tokenFile{AccessToken: tok, ExpiresAt: exp}
	if passphrase != "" {
		sealed, err := pkgcrypto.SealWithPassphrase([]byte(passphrase), []byte(tok), tokenAAD)
		if err != nil {
			return fmt.Errorf("seal token: %w", err)
		}
		tf.AccessToken, tf.Sealed = "", sealed
	}
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken(passphrase string) (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", errors.New("no token (run: dreamcolord -print-token <device>, then dc login -token <token>)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if !tf.ExpiresAt.IsZero() && time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	if len(tf.Sealed) > 0 {
		if passphrase == "" {
			return "", errors.New("token is sealed (set DREAMCOLOR_TOKEN_PASSPHRASE)")
		}
		pt, err := pkgcrypto.OpenWithPassphrase([]byte(passphrase), tf.Sealed, tokenAAD)
		if err != nil {
			return "", fmt.Errorf("open token: %w", err)
		}
		return string(pt), nil
	}
	if tf.AccessToken == "" {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// tokenExpiry reads exp from a token without verifying it.
func tokenExpiry(tok string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, fmt.Errorf("not a DreamColor token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

type dialOpts struct {
	addr       string
	useTLS     bool
	caPath     string
	skipVerify bool
	token      string
}

func dial(o dialOpts) (*grpc.ClientConn, *api.Client, error) {
	opts := []grpc.DialOption{}
	if o.useTLS {
		creds, err := loadTLS(o.caPath, o.skipVerify)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if o.token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: o.token, secure: o.useTLS}))
	}
	cc, err := grpc.NewClient(o.addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, api.NewClient(cc), nil
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `dc CLI
Usage:
  dc [-addr HOST:PORT] [-http HOST:PORT] [-tls [-cacert file | -insecure]] <cmd> [args]

Commands:
  version
  login      -token <token>                       (saves token; sealed if DREAMCOLOR_TOKEN_PASSPHRASE is set)
  status                                          (credits, free-run cooldown)
  buy        -pack single|party
  adventure                                       (current adventure)
  name       <child name>
  theme      <theme>
  reference  -file <image> | -clear
  chat       <message>
  speak      [-o out.wav] <text>
  reset | clear-chat
  generate   [-watch]
  job | watch | cancel
  pages      [-dir <dir>]                         (write current pages)
  regen      -page <i> [-desc <scene>]
  edit       -page <i> [-rotate deg] [-brightness pct] [-contrast pct] [-o out.png]
  save
  books
  book       -id <uuid> [-dir <dir>]
  load       -id <uuid>
  rm         -id <uuid>
  export     [-size a4|letter] [-orientation portrait|landscape] [-margin none|small|normal]
             [-no-title] [-no-numbers] [-o out.pdf]
  apikey     <key>
  credential
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures transport/auth for RPC calls.
func main() {
	env, err := config.LoadClient()
	if err != nil {
		config.Exitf("%v", err)
	}

	// global flags
	addr := flag.String("addr", env.Addr, "daemon gRPC addr")
	httpAddr := flag.String("http", env.HTTPAddr, "daemon HTTP addr (downloads)")
	useTLS := flag.Bool("tls", false, "use TLS")
	caPath := flag.String("cacert", env.CAFile, "CA cert (PEM)")
	skipVerify := flag.Bool("insecure", false, "skip cert verify (dev)")
	timeout := flag.Duration("timeout", env.Timeout, "call timeout (generate -watch waits longer)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	switch cmd {
	case "version":
		fmt.Printf("dc %s (%s)\n", version, buildDate)
		return
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		tok := fs.String("token", "", "token printed by dreamcolord -print-token")
		_ = fs.Parse(args)
		if *tok == "" {
			config.Exitf("need -token")
		}
		exp, err := tokenExpiry(*tok)
		if err != nil {
			fail(err)
		}
		if err := saveToken(*tok, exp, env.Passphrase); err != nil {
			fail(err)
		}
		fmt.Println("ok")
		return
	}

	token := env.Token
	if token == "" {
		if token, err = loadToken(env.Passphrase); err != nil {
			fail(err)
		}
	}
	cc, cli, err := dial(dialOpts{addr: *addr, useTLS: *useTLS, caPath: *caPath, skipVerify: *skipVerify, token: token})
	if err != nil {
		fail(err)
	}
	defer cc.Close()

	wait := *timeout
	if cmd == "watch" || cmd == "generate" {
		// runs take minutes; Ctrl-C stops watching, not the run
		wait = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	s := &session{ctx: ctx, cli: cli, token: token, httpAddr: *httpAddr, useTLS: *useTLS}
	if err := s.run(cmd, args); err != nil {
		fail(err)
	}
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// readAll reads a file, or stdin for "-".
func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func joinArgs(args []string, what string) (string, error) {
	s := strings.TrimSpace(strings.Join(args, " "))
	if s == "" {
		return "", fmt.Errorf("need %s", what)
	}
	return s, nil
}
