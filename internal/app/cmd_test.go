package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{name: "no args defaults to serve", args: []string{}, want: CommandServe},
		{name: "nil args defaults to serve", args: nil, want: CommandServe},
		{name: "serve", args: []string{"serve"}, want: CommandServe},
		{name: "migrate", args: []string{"migrate"}, want: CommandMigrate},
		{name: "healthcheck", args: []string{"healthcheck"}, want: CommandHealthcheck},
		{name: "extra args are ignored", args: []string{"migrate", "--flag", "value"}, want: CommandMigrate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) returned error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_UnknownIsError(t *testing.T) {
	for _, arg := range []string{"worker", "unknown", "Serve", ""} {
		t.Run(arg, func(t *testing.T) {
			if cmd, err := ParseCommand([]string{arg}); err == nil {
				t.Errorf("ParseCommand([%q]) = %q, want error", arg, cmd)
			}
		})
	}
}

func TestRun_UnknownCommandFailsBeforeInit(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SECRET_KEY", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"worker"})
	if err == nil {
		t.Fatal("Run(worker) should fail")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("error = %v, want unknown command", err)
	}
	if buf.Len() != 0 {
		t.Errorf("no logs expected before initialization, got %s", buf.String())
	}
}
