package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/linkwalk/internal/config"
)

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()
	flag := cmd.Flags().Lookup("output")
	if flag == nil {
		t.Fatal("expected output flag")
	}
	if flag.Shorthand != "o" || flag.DefValue != config.DefaultConfigFile {
		t.Errorf("unexpected output flag: -%s default %s", flag.Shorthand, flag.DefValue)
	}
	if cmd.Flags().Lookup("force") == nil {
		t.Error("expected force flag")
	}
}

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates a loadable config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", ".linkwalk")
		var out bytes.Buffer
		cmd := NewInitCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"-o", path})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), path) {
			t.Errorf("output does not mention the file:\n%s", out.String())
		}

		cf, err := config.LoadConfigFile(path)
		if err != nil {
			t.Fatalf("template does not load: %v", err)
		}
		if got := cf.GetSiteConfig("example.com").Exclude; len(got) != 1 || got[0] != "/logout" {
			t.Errorf("default exclusions = %v", got)
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".linkwalk")
		if err := os.WriteFile(path, []byte("sites: {}\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", path})
		if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected already exists error, got %v", err)
		}

		cmd = NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", path, "-f"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error with -f: %v", err)
		}
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "defaults:") {
			t.Error("file was not overwritten")
		}
	})
}
