package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/logtally/internal/app"
)

type testEnv struct {
	dir       string
	dsn       string
	history   string
	accessLog string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:       dir,
		dsn:       filepath.Join(dir, "db", "logtally.db"),
		history:   filepath.Join(dir, "history", "history.db"),
		accessLog: filepath.Join(dir, "access.log"),
	}

	lines := []string{
		`2017-01-01 00:00:10.000|192.168.1.1|"GET / HTTP/1.1"|200|"Mozilla/5.0"`,
		`2017-01-01 00:15:00.000|192.168.1.1|"GET / HTTP/1.1"|200|"Mozilla/5.0"`,
		`2017-01-01 00:30:00.000|10.0.0.5|"GET /about HTTP/1.1"|200|"curl/7.54"`,
		`2017-01-01 00:59:59.000|192.168.1.1|"GET / HTTP/1.1"|200|"Mozilla/5.0"`,
	}
	require.NoError(t, os.WriteFile(env.accessLog, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	viper.Set("database.driver", "sqlite")
	viper.Set("database.dsn", env.dsn)
	viper.Set("history.enabled", true)
	viper.Set("history.path", env.history)
	viper.Set("output.report.enabled", false)
	viper.Set("metrics.enabled", false)
	viper.Set("timezone", "UTC")

	return env
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunFlagsAndExcessAddresses(t *testing.T) {
	env := newTestEnv(t)

	out, err := executeRoot(t,
		"--startDate=2017-01-01.00:00:00",
		"--duration=hourly",
		"--threshold=2",
		"--accesslog="+env.accessLog,
	)
	require.NoError(t, err)

	assert.Equal(t,
		"Database connection established\n"+
			"Ips with excess requests:\n"+
			"IP: 192.168.1.1\n"+
			"Processing complete: 4 lines read, 4 stored, 0 skipped, 1 addresses flagged\n",
		out)
	assert.FileExists(t, env.dsn)
	assert.FileExists(t, env.history)
}

func TestMissingRequiredFlag(t *testing.T) {
	env := newTestEnv(t)

	_, err := executeRoot(t,
		"--startDate=2017-01-01.00:00:00",
		"--duration=hourly",
		"--threshold=2",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"accesslog"`)
	assert.NoFileExists(t, env.dsn)
}

func TestConfigErrorsFailBeforeDatabase(t *testing.T) {
	tests := []struct {
		name  string
		args  func(env testEnv) []string
		field string
	}{
		{
			name: "unknown duration",
			args: func(env testEnv) []string {
				return []string{"--startDate=2017-01-01.00:00:00", "--duration=weekly", "--threshold=2", "--accesslog=" + env.accessLog}
			},
			field: "duration",
		},
		{
			name: "bad start date",
			args: func(env testEnv) []string {
				return []string{"--startDate=2017-01-01 00:00:00", "--duration=hourly", "--threshold=2", "--accesslog=" + env.accessLog}
			},
			field: "startDate",
		},
		{
			name: "negative threshold",
			args: func(env testEnv) []string {
				return []string{"--startDate=2017-01-01.00:00:00", "--duration=daily", "--threshold=-1", "--accesslog=" + env.accessLog}
			},
			field: "threshold",
		},
		{
			name: "missing access log",
			args: func(env testEnv) []string {
				return []string{"--startDate=2017-01-01.00:00:00", "--duration=daily", "--threshold=1", "--accesslog=" + filepath.Join(env.dir, "nope.log")}
			},
			field: "accesslog",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)

			out, err := executeRoot(t, tc.args(env)...)
			require.Error(t, err)

			var cve *app.ConfigValidationError
			require.True(t, errors.As(err, &cve), "got %v", err)
			assert.Equal(t, tc.field, cve.Field)

			assert.Empty(t, out)
			assert.NoDirExists(t, filepath.Dir(env.dsn))
			assert.NoFileExists(t, env.history)
		})
	}
}

func TestDatabaseFailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	viper.Set("database.driver", "oracle")

	out, err := executeRoot(t,
		"--startDate=2017-01-01.00:00:00",
		"--duration=hourly",
		"--threshold=2",
		"--accesslog="+env.accessLog,
	)
	require.Error(t, err)
	assert.NotContains(t, out, "Database connection established")
}
