package cmd

import (
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	assert.NoError(t, setupLogging("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.NoError(t, setupLogging("warn", "text"))
	assert.Equal(t, log.WarnLevel, log.GetLevel())

	assert.Error(t, setupLogging("loud", "text"))
	assert.Error(t, setupLogging("info", "xml"))
}

func TestCommandsRegistered(t *testing.T) {
	app := RootApp()
	names := make([]string, 0, len(app.Commands))
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"build", "serve", "browse", "sources", "migrate", "rollback", "tidy"}, names)
}

func TestMigrateCommandLogsDatabase(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	defer log.SetLevel(log.InfoLevel)

	database := filepath.Join(t.TempDir(), "techfeed.db")
	require.NoError(t, RootApp().Run([]string{"techfeed", "migrate", "--database", database}))

	var configured *log.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Database configured" {
			configured = entry
		}
	}
	require.NotNil(t, configured)
	assert.Equal(t, log.InfoLevel, configured.Level)
	assert.Equal(t, database, configured.Data["database"])
}
