package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSettingsSetAndShow(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.json")
	store := filepath.ToSlash(filepath.Join(dir, "store"))
	require.NoError(t, os.WriteFile(cfg, []byte(`{"logging":{"level":"error"},"storage":{"driver":"file","path":"`+store+`"}}`), 0o600))
	env := filepath.Join(dir, "missing.env")

	_, err := execute(t, "settings", "set", "--config", cfg, "--env-file", env)
	require.ErrorContains(t, err, "nothing to change")

	out, err := execute(t, "settings", "set", "--config", cfg, "--env-file", env, "--json",
		"--chat-id", "@chan", "--bot-token", "123:abc", "--auto", "--auto-time", "08:15")
	require.NoError(t, err)
	require.NotContains(t, out, "123:abc")
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	require.Equal(t, "@chan", v["chat_id"])
	require.Equal(t, "bot", v["transport"])
	require.Equal(t, true, v["auto_send_enabled"])

	_, err = execute(t, "settings", "set", "--config", cfg, "--env-file", env, "--json", "--auto-time", "late")
	require.ErrorContains(t, err, "Invalid request")

	out, err = execute(t, "stats", "--config", cfg, "--env-file", env, "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"total": 0`)
}

func TestSendRejectsUnknownSubcategory(t *testing.T) {
	_, err := execute(t, "send", "nowhere", "--config", "unused.json")
	require.ErrorContains(t, err, `unknown subcategory "nowhere"`)
}
