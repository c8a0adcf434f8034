package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	if cmd.Use != "linkwalk" {
		t.Errorf("expected use 'linkwalk', got %q", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" || cmd.Version == "" {
		t.Error("expected descriptions and version")
	}

	flag := cmd.PersistentFlags().Lookup("verbose")
	if flag == nil {
		t.Fatal("expected verbose flag")
	}
	if flag.Shorthand != "v" || flag.DefValue != "false" {
		t.Errorf("unexpected verbose flag: -%s default %s", flag.Shorthand, flag.DefValue)
	}

	want := map[string]bool{"crawl": false, "history": false, "init": false, "version": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"linkwalk version", "commit:", "built:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if getVersion() == "" || getCommit() == "" || getDate() == "" {
		t.Error("version helpers must never return empty strings")
	}
}
