package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("JWT_SECRET", "cli-test-secret-0123456789")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "mindcare.db"))
	t.Setenv("INFERENCE_URL", "http://127.0.0.1:1")
	t.Setenv("CLASSIFIER_BACKEND", "keyword")
	t.Setenv("MODEL_WARM_ON_STARTUP", "false")
	t.Setenv("THERAPIST_OUTPUT_PATH", filepath.Join(dir, "therapists.json"))
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	want := []string{"serve", "migrate", "therapists", "export", "chat", "version"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestExportCmdFlags(t *testing.T) {
	cmd := NewExportCmd()
	tests := []struct {
		flag string
		def  string
	}{
		{"user", ""},
		{"kind", "chat"},
		{"format", "json"},
		{"output", ""},
	}
	for _, tt := range tests {
		f := cmd.Flags().Lookup(tt.flag)
		if f == nil {
			t.Errorf("--%s flag not found", tt.flag)
			continue
		}
		if f.DefValue != tt.def {
			t.Errorf("--%s default = %q, want %q", tt.flag, f.DefValue, tt.def)
		}
	}
}

func TestVersionCmd_Output(t *testing.T) {
	original := versionInfo
	defer func() { versionInfo = original }()

	SetVersion("1.2.3", "abc123", "2026-01-31")
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "mindcare 1.2.3 (commit abc123, built 2026-01-31)") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestChatThenExport(t *testing.T) {
	setTestEnv(t)

	out, err := run(t, "migrate")
	if err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	if !strings.Contains(out, "schema up to date (sqlite)") {
		t.Errorf("unexpected migrate output %q", out)
	}

	out, err = run(t, "chat", "--user", "asha", "I feel so lonely")
	if err != nil {
		t.Fatalf("chat error = %v", err)
	}
	if !strings.Contains(out, "Mood: sadness 😢") {
		t.Errorf("unexpected chat output %q", out)
	}

	out, err = run(t, "export", "--user", "asha", "--kind", "mood", "--format", "csv")
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || lines[0] != "Timestamp,Mood" || !strings.HasSuffix(lines[1], ",sadness") {
		t.Errorf("unexpected export output %q", out)
	}
}

func TestExportRejectsUnknownKind(t *testing.T) {
	if _, err := run(t, "export", "--user", "asha", "--kind", "audio"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestChatRequiresMessage(t *testing.T) {
	if _, err := run(t, "chat"); err == nil {
		t.Fatal("expected error without a message")
	}
}
