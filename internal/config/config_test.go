package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadServer_Defaults(t *testing.T) {
	c, err := LoadServer("test", nil)
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if c.Addr != "127.0.0.1:7443" || c.Store != StoreSQLite || c.SceneAttempts != 2 || c.HTTPTimeout != 0 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.SQLitePath() != filepath.Join("data", "dreamcolor.db") {
		t.Fatalf("SQLitePath: %s", c.SQLitePath())
	}
}

func TestLoadServer_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("DREAMCOLOR_ADDR", "127.0.0.1:9000")
	t.Setenv("DREAMCOLOR_SCENE_ATTEMPTS", "3")
	t.Setenv("DREAMCOLOR_HTTP_TIMEOUT", "90s")

	c, err := LoadServer("test", []string{"-addr", ":9100"})
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if c.Addr != ":9100" {
		t.Fatalf("flag must win, got %s", c.Addr)
	}
	if c.SceneAttempts != 3 || c.HTTPTimeout != 90*time.Second {
		t.Fatalf("env not applied: %+v", c)
	}
}

func TestLoadServer_Validation(t *testing.T) {
	cases := map[string][]string{
		"postgres without dsn": {"-store", "postgres"},
		"unknown store":        {"-store", "bolt"},
		"half tls":             {"-tls-cert", "c.pem"},
		"zero attempts":        {"-scene-attempts", "0"},
	}
	for name, args := range cases {
		if _, err := LoadServer("test", args); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("DREAMCOLOR_RATE_PER_MINUTE", "many")
	_, err := LoadServer("test", nil)
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("want parse env error, got %v", err)
	}
}

func TestLoadSecret_CreatedOnce(t *testing.T) {
	dir := t.TempDir()
	c := Server{DataDir: dir}

	s1, err := c.LoadSecret()
	if err != nil {
		t.Fatalf("LoadSecret: %v", err)
	}
	s2, err := c.LoadSecret()
	if err != nil || string(s1) != string(s2) {
		t.Fatalf("secret must be stable: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "secret.key"))
	if err != nil || info.Mode().Perm() != 0o600 {
		t.Fatalf("secret file: %v %v", info, err)
	}

	c.Secret = "explicit"
	if s, _ := c.LoadSecret(); string(s) != "explicit" {
		t.Fatalf("explicit secret ignored")
	}
}

func TestLoadSecret_Invalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "secret.key"), []byte("zz"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := (Server{DataDir: dir}).LoadSecret(); err == nil {
		t.Fatalf("want error for an invalid secret file")
	}
}

func TestLoadClient(t *testing.T) {
	t.Setenv("DREAMCOLOR_TOKEN", "tok")
	t.Setenv("DREAMCOLOR_TOKEN_PASSPHRASE", "pw")
	c, err := LoadClient()
	if err != nil || c.Token != "tok" || c.Passphrase != "pw" || c.Timeout != 30*time.Second {
		t.Fatalf("LoadClient: %+v %v", c, err)
	}
}
