package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/testutil"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	store := testutil.NewSeededStore(t)
	out := new(bytes.Buffer)

	// start CLI
	return &commandLine{
		db:     new(sql.DB),
		budget: budget.NewService(store.Budget, store.DB),
		in:     strings.NewReader(""),
		out:    out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "indicateurs", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	t.Run("memory engine", func(t *testing.T) {
		memCli := *cli
		memCli.db = nil
		assert.Equal(t, errNoDatabase, memCli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_ventilate(t *testing.T) {
	type extra struct {
		terminal bool
		answer   string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"ventilate"}, wantErr: errHelp},
		{name: "no mode", args: []string{"ventilate", "-subvention", "1"}, wantErr: errHelp},
		{name: "bad flag", args: []string{"ventilate", "-lol"}, wantErrStr: "flag provided but not defined: -lol"},
		{name: "grant not found", args: []string{"ventilate", "-subvention", "99", "-mode", "reset", "-yes"}, wantErr: budget.ErrGrantNotFound},
		{name: "unknown mode", args: []string{"ventilate", "-subvention", "1", "-mode", "lol", "-yes"}, wantErr: budget.ErrUnknownMode},
		{name: "no terminal", args: []string{"ventilate", "-subvention", "1", "-mode", "copy_base"}, wantErr: errNoTerminal},
		{
			name:    "declined",
			args:    []string{"ventilate", "-subvention", "1", "-mode", "copy_base"},
			extra:   extra{terminal: true, answer: "n\n"},
			wantErr: errAborted,
		},
		{
			name:  "confirmed",
			args:  []string{"ventilate", "-subvention", "1", "-mode", "copy_base"},
			extra: extra{terminal: true, answer: "oui\n"},
		},
		{name: "yes", args: []string{"ventilate", "-subvention", "1", "-mode", "reset", "-yes"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			cli, out := setup(t)
			ex, _ := tt.extra.(extra)
			isTerminalFunc = func(fd int) bool { return ex.terminal }
			cli.in = strings.NewReader(ex.answer)

			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				assert.Contains(t, out.String(), "3 ligne(s) ventilée(s).")
			}
		})
	}

	t.Run("copy_base writes the base amounts", func(t *testing.T) {
		cli, out := setup(t)
		require.NoError(t, cli.run([]string{"admin", "ventilate", "-subvention", "1", "-mode", "copy_base", "-yes"}))
		assert.Contains(t, out.String(), "ligne 1 : 700,00 €")
		assert.Contains(t, out.String(), "ligne 3 : 1000,00 €")
	})
}

func Test_commandLine_export(t *testing.T) {
	tests := []cliTest{
		{name: "unknown kind", args: []string{"export", "-kind", "lol"}, wantErr: errHelp},
		{name: "grant without id", args: []string{"export", "-kind", "subvention"}, wantErr: errHelp},
		{name: "grant not found", args: []string{"export", "-kind", "subvention", "-id", "99"}, wantErr: budget.ErrGrantNotFound},
		{name: "expenses", args: []string{"export"}, extra: "Boulangerie"},
		{name: "grant", args: []string{"export", "-kind", "subvention", "-id", "1"}, extra: "Matériel"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			cli, out := setup(t)
			err := cli.run(args)
			tt.check(t, err)
			if want, ok := tt.extra.(string); ok {
				assert.Contains(t, out.String(), want)
			}
		})
	}

	t.Run("to file", func(t *testing.T) {
		cli, out := setup(t)
		path := filepath.Join(t.TempDir(), "depenses.csv")
		require.NoError(t, cli.run([]string{"admin", "export", "-o", path}))
		assert.Empty(t, out.String())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "\ufeff"))
		assert.Contains(t, string(data), "Tablettes")
	})
}
