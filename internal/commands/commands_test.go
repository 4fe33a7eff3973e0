package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klabast/wb-services/plaza/internal/admin"
	"github.com/klabast/wb-services/plaza/internal/config"
	"github.com/klabast/wb-services/plaza/internal/event"
	"github.com/klabast/wb-services/plaza/internal/kv"
	"github.com/klabast/wb-services/plaza/internal/logging"
	"github.com/klabast/wb-services/plaza/internal/store"
)

// run executes the command line in a scratch directory against a file store
func run(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--store-backend", "file", "--store-dir", dir, "--log-output", "discard"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func scratch(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func seed(t *testing.T, dir string, events []event.Event) {
	t.Helper()
	fs, err := kv.NewFileStore(filepath.Join(dir, kv.DefaultFileName))
	require.NoError(t, err)
	require.NoError(t, store.New(fs).Save(context.Background(), events))
}

func TestEventsListDefaults(t *testing.T) {
	dir := scratch(t)

	out, err := run(t, dir, "", "events", "list", "--output", "json")
	require.NoError(t, err)

	var got []event.Event
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, event.Defaults(), got)
}

func TestEventsListTable(t *testing.T) {
	dir := scratch(t)
	seed(t, dir, []event.Event{
		{ID: 7, Title: "Quiz Night", Date: "2025-05-02", Venue: event.VenueYouthClub, Status: event.StatusUpcoming},
	})

	out, err := run(t, dir, "", "events", "list", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Quiz Night")
	assert.Contains(t, out, "2025-05-02")
	assert.NotContains(t, out, "Christmas Carol Concert")
}

func TestEventsListUnknownOutput(t *testing.T) {
	dir := scratch(t)
	_, err := run(t, dir, "", "events", "list", "-o", "xml")
	assert.Error(t, err)
}

func TestEventsExport(t *testing.T) {
	dir := scratch(t)

	out, err := run(t, dir, "", "events", "export", "--format", "ics")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))

	exports := filepath.Join(dir, "exports")
	require.NoError(t, os.Mkdir(exports, 0755))
	out, err = run(t, dir, "", "events", "export", "-f", "csv", "--file", exports)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, exports, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "plaza-events-"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,title,date"))

	_, err = run(t, dir, "", "events", "export", "--format", "pdf")
	assert.Error(t, err)
}

func TestEventsClear(t *testing.T) {
	dir := scratch(t)
	seed(t, dir, []event.Event{
		{ID: 7, Title: "Quiz Night", Date: "2025-05-02", Venue: event.VenueYouthClub, Status: event.StatusUpcoming},
	})

	_, err := run(t, dir, "", "events", "clear")
	require.Error(t, err)

	out, err := run(t, dir, "", "events", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "All events cleared.")

	// cleared storage falls back to the defaults
	out, err = run(t, dir, "", "events", "list", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "Christmas Carol Concert")
}

func TestHashPassword(t *testing.T) {
	dir := scratch(t)
	authFile := filepath.Join(dir, "auth.secret")

	out, err := run(t, dir, "hallkeeper\nsecret pass\nsecret pass\n", "hash-password", "--auth-file", authFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Auth file written to "+authFile)

	creds, err := admin.LoadAuthFile(authFile)
	require.NoError(t, err)
	assert.Equal(t, "hallkeeper", creds.User())
	assert.True(t, creds.Verify("hallkeeper", "secret pass"))

	// existing file is kept without --overwrite
	_, err = run(t, dir, "other\npw\npw\n", "hash-password", "--auth-file", authFile)
	assert.Error(t, err)

	_, err = run(t, dir, "other\npw\npw\n", "hash-password", "--auth-file", authFile, "--overwrite")
	require.NoError(t, err)
	creds, err = admin.LoadAuthFile(authFile)
	require.NoError(t, err)
	assert.Equal(t, "other", creds.User())
}

func TestHashPasswordRejectsBadInput(t *testing.T) {
	dir := scratch(t)

	tests := []struct {
		name  string
		stdin string
	}{
		{"empty username", "\npw\npw\n"},
		{"empty password", "admin\n\n\n"},
		{"mismatch", "admin\none\ntwo\n"},
		{"no input", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authFile := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-"))
			_, err := run(t, dir, tt.stdin, "hash-password", "--auth-file", authFile)
			assert.Error(t, err)
			_, statErr := os.Stat(authFile)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestInvalidBackend(t *testing.T) {
	scratch(t)
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--store-backend", "sqlite", "--log-output", "discard", "events", "list"})
	assert.Error(t, root.ExecuteContext(context.Background()))
}

func TestCredentials(t *testing.T) {
	dir := t.TempDir()
	a := &App{cfg: &config.Config{}, logger: logging.Nop()}
	a.cfg.Admin.User = admin.DefaultUser
	a.cfg.Admin.Password = admin.DefaultPassword

	creds, err := a.credentials()
	require.NoError(t, err)
	assert.True(t, creds.Verify("admin", "plaza2025"))

	authFile := filepath.Join(dir, "auth.secret")
	require.NoError(t, admin.WriteAuthFile(authFile, "keeper", "pw", false))
	a.cfg.Admin.AuthFile = authFile
	creds, err = a.credentials()
	require.NoError(t, err)
	assert.Equal(t, "keeper", creds.User())
	assert.True(t, creds.Verify("keeper", "pw"))
	assert.False(t, creds.Verify("admin", "plaza2025"))

	a.cfg.Admin.AuthFile = filepath.Join(dir, "missing")
	_, err = a.credentials()
	assert.Error(t, err)
}
