package check

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backmassage/reelrunner/internal/config"
	"github.com/backmassage/reelrunner/internal/lock"
)

type recordLogger struct{ lines []string }

func (r *recordLogger) add(level, f string, a ...interface{}) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(f, a...))
}
func (r *recordLogger) Info(f string, a ...interface{})    { r.add("INFO", f, a...) }
func (r *recordLogger) Success(f string, a ...interface{}) { r.add("SUCCESS", f, a...) }
func (r *recordLogger) Warn(f string, a ...interface{})    { r.add("WARN", f, a...) }
func (r *recordLogger) Error(f string, a ...interface{})   { r.add("ERROR", f, a...) }

func (r *recordLogger) contains(level, substr string) bool {
	for _, l := range r.lines {
		if strings.HasPrefix(l, level+" ") && strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// layout creates a workspace with a venv and a cookie file and returns a
// config pointing at it.
func layout(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	bin := filepath.Join(root, "venv", binDirName())
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bin, "activate"), []byte("# activate\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "cookies.txt"), []byte("# Netscape HTTP Cookie File\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.VenvDir = filepath.Join(root, "venv")
	cfg.CookieFile = filepath.Join(root, "cookies.txt")
	cfg.CookieEnv = "REELRUNNER_TEST_COOKIES"
	cfg.LockFile = filepath.Join(root, "reelrunner.lock")
	cfg.LogFile = filepath.Join(root, "pipeline.log")
	cfg.WorkDir = root
	return cfg
}

func TestValidate_Success(t *testing.T) {
	cfg := layout(t)
	t.Setenv(cfg.CookieEnv, "")

	env, err := Validate(&cfg)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if env.CookieFile != cfg.CookieFile || env.VenvDir != cfg.VenvDir {
		t.Errorf("unexpected environment: %+v", env)
	}
	if got := os.Getenv(cfg.CookieEnv); got != cfg.CookieFile {
		t.Errorf("%s = %q, want %q", cfg.CookieEnv, got, cfg.CookieFile)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{"venv dir missing", func(c *config.Config) { c.VenvDir = filepath.Join(c.WorkDir, "nope") }, ErrVenvNotFound},
		{"venv dir empty", func(c *config.Config) { c.VenvDir = "" }, ErrVenvNotFound},
		{"activate missing", func(c *config.Config) {
			os.Remove(filepath.Join(c.VenvDir, binDirName(), "activate"))
		}, ErrVenvNotFound},
		{"activate is a dir", func(c *config.Config) {
			p := filepath.Join(c.VenvDir, binDirName(), "activate")
			os.Remove(p)
			os.MkdirAll(p, 0o755)
		}, ErrVenvNotFound},
		{"cookies missing", func(c *config.Config) { os.Remove(c.CookieFile) }, ErrCookiesNotFound},
		{"cookies empty", func(c *config.Config) { os.WriteFile(c.CookieFile, nil, 0o600) }, ErrCookiesNotFound},
		{"cookies is a dir", func(c *config.Config) { c.CookieFile = c.WorkDir }, ErrCookiesNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := layout(t)
			t.Setenv(cfg.CookieEnv, "untouched")
			tt.mutate(&cfg)

			_, err := Validate(&cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate error = %v, want %v", err, tt.wantErr)
			}
			if got := os.Getenv(cfg.CookieEnv); got != "untouched" {
				t.Errorf("failed validation changed %s to %q", cfg.CookieEnv, got)
			}
		})
	}
}

func TestValidate_Idempotent(t *testing.T) {
	cfg := layout(t)
	t.Setenv(cfg.CookieEnv, "")

	_, err1 := Validate(&cfg)
	_, err2 := Validate(&cfg)
	if (err1 == nil) != (err2 == nil) {
		t.Fatalf("results differ: %v vs %v", err1, err2)
	}

	os.Remove(cfg.CookieFile)
	_, err1 = Validate(&cfg)
	_, err2 = Validate(&cfg)
	if !errors.Is(err1, ErrCookiesNotFound) || !errors.Is(err2, ErrCookiesNotFound) {
		t.Fatalf("results differ after removal: %v vs %v", err1, err2)
	}
}

func TestValidate_SetenvFailure(t *testing.T) {
	cfg := layout(t)
	c := NewChecker()
	c.setenv = func(string, string) error { return errors.New("read-only env") }

	if _, err := c.Validate(&cfg); err == nil || !strings.Contains(err.Error(), "read-only env") {
		t.Errorf("Validate error = %v", err)
	}
}

func TestEnvironment_StageEnv(t *testing.T) {
	env := Environment{
		VenvDir:    "/srv/venv",
		BinDir:     "/srv/venv/bin",
		CookieFile: "/srv/cookies.txt",
		CookieEnv:  "YTDLP_COOKIES_FILE",
		Extra:      map[string]string{"GMAIL_DESIRED_SENDERS": "a@example.com", "MAX_IMAP_RETRIES": "5"},
	}
	base := []string{
		"HOME=/home/ingest",
		"PATH=/usr/bin:/bin",
		"PYTHONHOME=/opt/python",
		"YTDLP_COOKIES_FILE=/stale",
		"MAX_IMAP_RETRIES=3",
		"GMAIL_EMAIL=me@example.com",
	}

	got := env.StageEnv(base)
	want := []string{
		"HOME=/home/ingest",
		"GMAIL_EMAIL=me@example.com",
		"VIRTUAL_ENV=/srv/venv",
		"PATH=/srv/venv/bin" + string(os.PathListSeparator) + "/usr/bin:/bin",
		"YTDLP_COOKIES_FILE=/srv/cookies.txt",
		"GMAIL_DESIRED_SENDERS=a@example.com",
		"MAX_IMAP_RETRIES=5",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("StageEnv =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestEnvironment_StageEnvWithoutPath(t *testing.T) {
	env := Environment{VenvDir: "/v", BinDir: "/v/bin", CookieFile: "/c", CookieEnv: "C"}
	got := env.StageEnv(nil)
	if len(got) != 3 || got[1] != "PATH=/v/bin" {
		t.Errorf("StageEnv(nil) = %q", got)
	}
}

func TestRunCheck_AllGood(t *testing.T) {
	cfg := layout(t)
	cfg.Fetch.Command = []string{"sh"}
	cfg.Transcribe.Command = []string{"sh"}
	log := &recordLogger{}

	c := NewChecker()
	c.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	if !c.RunCheck(&cfg, log) {
		t.Fatalf("RunCheck failed: %q", log.lines)
	}
	for _, want := range []string{"Dependency environment", "Cookie file", "Stage fetch", "Stage transcribe", "Lock free", "tmux"} {
		if !log.contains("SUCCESS", want) {
			t.Errorf("missing SUCCESS line for %q in %q", want, log.lines)
		}
	}
}

func TestRunCheck_DoesNotRewriteLockFile(t *testing.T) {
	cfg := layout(t)
	cfg.Fetch.Command = []string{"sh"}
	cfg.Transcribe.Command = []string{"sh"}
	if err := os.MkdirAll(filepath.Dir(cfg.LockFile), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.LockFile, []byte("777\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	log := &recordLogger{}

	c := NewChecker()
	c.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	c.RunCheck(&cfg, log)

	if !log.contains("SUCCESS", "Lock free") {
		t.Errorf("missing Lock free line in %q", log.lines)
	}
	if pid, ok := lock.Holder(cfg.LockFile); !ok || pid != 777 {
		t.Errorf("lock holder after check = %d, %v; want 777", pid, ok)
	}
}

func TestRunCheck_ReportsEverything(t *testing.T) {
	cfg := layout(t)
	os.Remove(cfg.CookieFile)
	cfg.VenvDir = filepath.Join(cfg.WorkDir, "missing-venv")
	cfg.Fetch.Command = []string{"reelrunner-no-such-fetcher"}

	held, err := lock.Acquire(cfg.LockFile)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	log := &recordLogger{}
	c := NewChecker()
	c.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	if c.RunCheck(&cfg, log) {
		t.Fatal("RunCheck should fail without venv and cookies")
	}
	for _, want := range []struct{ level, text string }{
		{"ERROR", "dependency environment not found"},
		{"ERROR", "cookie file not found"},
		{"WARN", "Stage fetch"},
		{"WARN", "Another instance is running"},
		{"WARN", "tmux not found"},
	} {
		if !log.contains(want.level, want.text) {
			t.Errorf("missing %s line %q in %q", want.level, want.text, log.lines)
		}
	}
}

func TestWarnUnresolvedStages(t *testing.T) {
	cfg := layout(t)
	cfg.Fetch.Command = []string{"reelrunner-no-such-fetcher"}
	cfg.Transcribe.Command = []string{"sh"}
	log := &recordLogger{}

	WarnUnresolvedStages(&cfg, Environment{}, log)
	if len(log.lines) != 1 || !log.contains("WARN", "Stage fetch") {
		t.Errorf("log = %q", log.lines)
	}
}
