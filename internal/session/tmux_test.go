package session

import (
	"errors"
	"reflect"
	"testing"
)

type fakeTmux struct {
	calls      [][]string
	hasSession bool
	newErr     error
	newOut     string
}

func (f *fakeTmux) run(args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	switch args[0] {
	case "has-session":
		if f.hasSession {
			return nil, nil
		}
		return []byte("can't find session"), errors.New("exit status 1")
	case "new-session":
		return []byte(f.newOut), f.newErr
	}
	return nil, errors.New("unexpected tmux command")
}

func testLauncher(f *fakeTmux, tmuxErr error) *Launcher {
	return &Launcher{
		lookPath:   func(string) (string, error) { return "/usr/bin/tmux", tmuxErr },
		executable: func() (string, error) { return "/opt/reelrunner/reelrunner", nil },
		run:        f.run,
	}
}

func TestLaunch_StartsDetachedRunOnce(t *testing.T) {
	f := &fakeTmux{}
	l := testLauncher(f, nil)

	exe, err := l.Launch(Request{
		Name:    "ingest",
		Dir:     "/srv/pipeline",
		Args:    []string{"--log=/var/log/p.log", "--verbose"},
		Command: "run-once",
		Env:     []string{"GMAIL_EMAIL=ops@example.com"},
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if exe != "/opt/reelrunner/reelrunner" {
		t.Errorf("exe = %q", exe)
	}

	want := [][]string{
		{"has-session", "-t", "=ingest"},
		{"new-session", "-d", "-s", "ingest", "-c", "/srv/pipeline",
			"-e", "GMAIL_EMAIL=ops@example.com",
			"/opt/reelrunner/reelrunner", "--log=/var/log/p.log", "--verbose", "run-once"},
	}
	if !reflect.DeepEqual(f.calls, want) {
		t.Errorf("tmux calls =\n%q\nwant\n%q", f.calls, want)
	}
}

func TestLaunch_NoDir(t *testing.T) {
	f := &fakeTmux{}
	if _, err := testLauncher(f, nil).Launch(Request{Name: "s", Command: "run-once"}); err != nil {
		t.Fatal(err)
	}
	want := []string{"new-session", "-d", "-s", "s", "/opt/reelrunner/reelrunner", "run-once"}
	if got := f.calls[len(f.calls)-1]; !reflect.DeepEqual(got, want) {
		t.Errorf("new-session args = %q, want %q", got, want)
	}
}

func TestLaunch_Errors(t *testing.T) {
	tests := []struct {
		name      string
		fake      *fakeTmux
		tmuxErr   error
		wantErr   error
		wantCalls int
	}{
		{"tmux missing", &fakeTmux{}, errors.New("not found"), ErrTmuxNotFound, 0},
		{"session exists", &fakeTmux{hasSession: true}, nil, ErrSessionExists, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testLauncher(tt.fake, tt.tmuxErr).Launch(Request{Name: "s", Command: "run-once"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(tt.fake.calls) != tt.wantCalls {
				t.Errorf("tmux calls = %q", tt.fake.calls)
			}
		})
	}
}

func TestLaunch_NewSessionFailureIncludesOutput(t *testing.T) {
	f := &fakeTmux{newErr: errors.New("exit status 1"), newOut: "no server running\n"}
	_, err := testLauncher(f, nil).Launch(Request{Name: "s", Command: "run-once"})
	if err == nil {
		t.Fatal("expected error")
	}
	want := `starting tmux session "s": exit status 1: no server running`
	if err.Error() != want {
		t.Errorf("err = %q, want %q", err, want)
	}
}

func TestForwardEnv(t *testing.T) {
	environ := []string{
		"HOME=/home/ops",
		"GMAIL_EMAIL=ops@example.com",
		"GMAIL_PASSWD=secret",
		"REELRUNNER_INTERVAL=600",
		"YTDLP_COOKIES_FILE=/srv/cookies.txt",
		"PATH=/usr/bin",
		"GMAIL_TOKEN_NO_VALUE",
		"=weird",
	}
	got := ForwardEnv(environ, "YTDLP_COOKIES_FILE")
	want := []string{
		"GMAIL_EMAIL=ops@example.com",
		"GMAIL_PASSWD=secret",
		"REELRUNNER_INTERVAL=600",
		"YTDLP_COOKIES_FILE=/srv/cookies.txt",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ForwardEnv = %q, want %q", got, want)
	}
}
