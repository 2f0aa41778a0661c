package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"multidb-backup/internal/logging"
)

// postgresAdapter backs up PostgreSQL targets with pg_dump / pg_dumpall
type postgresAdapter struct {
	target  Target
	tempDir string
	runner  CommandRunner
	log     *logging.Logger
}

func newPostgresAdapter(target Target, tempDir string, runner CommandRunner, log *logging.Logger) *postgresAdapter {
	return &postgresAdapter{
		target:  target,
		tempDir: tempDir,
		runner:  runner,
		log:     log,
	}
}

func (a *postgresAdapter) Target() Target {
	return a.target
}

func (a *postgresAdapter) connArgs() []string {
	return []string{
		"-h", a.target.Host,
		"-p", strconv.Itoa(a.target.Port),
		"-U", a.target.User,
	}
}

func (a *postgresAdapter) env() []string {
	return []string{"PGPASSWORD=" + a.target.Password}
}

// ListDatabases resolves the selection policy. "all" queries pg_database,
// which already excludes templates; discovery failures log and return empty.
func (a *postgresAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	if a.target.Databases != DatabasesAll {
		return splitDatabases(a.target.Databases), nil
	}

	args := append(a.connArgs(),
		"-t", "-A",
		"-c", "SELECT datname FROM pg_database WHERE datistemplate = false;",
	)

	result, err := a.runner.Run(ctx, CommandSpec{
		Name:    "psql",
		Args:    args,
		Env:     a.env(),
		Timeout: discoveryTimeout,
	})
	if err != nil || !result.Ok() {
		a.log.Warnf("postgresql: listing databases failed: %v %s", err, strings.TrimSpace(result.Stderr))
		return nil, nil
	}

	var databases []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			databases = append(databases, name)
		}
	}
	return databases, nil
}

// ExtractDatabase dumps one database with pg_dump
func (a *postgresAdapter) ExtractDatabase(ctx context.Context, name, destPath string) error {
	args := append(a.connArgs(), "-d", name, "-f", destPath)
	args = append(args, splitExtraOpts(a.target.ExtraOpts)...)

	result, err := a.runner.Run(ctx, CommandSpec{
		Name:    "pg_dump",
		Args:    args,
		Env:     a.env(),
		Timeout: extractionTimeout,
	})
	if err != nil {
		return NewExtractionError(fmt.Sprintf("pg_dump %s", name), err)
	}
	if !result.Ok() {
		return NewExtractionError(fmt.Sprintf("pg_dump %s: %s", name, strings.TrimSpace(result.Stderr)), nil)
	}
	return nil
}

// ExtractAuxiliary captures cluster-wide roles and grants with
// pg_dumpall --globals-only. Best effort.
func (a *postgresAdapter) ExtractAuxiliary(ctx context.Context) ([]ExtractedItem, error) {
	destPath := filepath.Join(a.tempDir, "postgresql_globals.sql")

	args := append(a.connArgs(), "--globals-only", "-f", destPath)

	result, err := a.runner.Run(ctx, CommandSpec{
		Name:    "pg_dumpall",
		Args:    args,
		Env:     a.env(),
		Timeout: auxiliaryTimeout,
	})
	if err != nil {
		return nil, NewExtractionError("pg_dumpall --globals-only", err)
	}
	if !result.Ok() {
		return nil, NewExtractionError(fmt.Sprintf("pg_dumpall --globals-only: %s", strings.TrimSpace(result.Stderr)), nil)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return nil, NewExtractionError("globals dump file not found", err)
	}

	a.log.Infof("postgresql: global objects captured (%s)", FormatSize(info.Size()))
	return []ExtractedItem{{
		Target: a.target,
		Name:   "postgresql_globals",
		Path:   destPath,
		Size:   info.Size(),
	}}, nil
}
