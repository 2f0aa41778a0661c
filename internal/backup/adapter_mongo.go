package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"multidb-backup/internal/logging"
)

// MongoDB databases that exist for the server's own bookkeeping
var mongoSystemDatabases = map[string]bool{
	"admin":  true,
	"local":  true,
	"config": true,
}

// mongoAdapter backs up MongoDB targets with mongodump. Each database dump
// is a directory tree, so the adapter folds it into a single zip file to
// satisfy the one-file-per-database extraction contract.
type mongoAdapter struct {
	target  Target
	tempDir string
	runner  CommandRunner
	log     *logging.Logger
}

func newMongoAdapter(target Target, tempDir string, runner CommandRunner, log *logging.Logger) *mongoAdapter {
	return &mongoAdapter{
		target:  target,
		tempDir: tempDir,
		runner:  runner,
		log:     log,
	}
}

func (a *mongoAdapter) Target() Target {
	return a.target
}

func (a *mongoAdapter) authArgs() []string {
	if a.target.User == "" || a.target.Password == "" {
		return nil
	}
	authDB := a.target.AuthDB
	if authDB == "" {
		authDB = "admin"
	}
	return []string{
		"--username", a.target.User,
		"--password", a.target.Password,
		"--authenticationDatabase", authDB,
	}
}

// ListDatabases resolves the selection policy. "all" asks the server via
// mongosh and drops the system databases; failures log and return empty.
func (a *mongoAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	if a.target.Databases != DatabasesAll {
		return splitDatabases(a.target.Databases), nil
	}

	args := []string{
		"--host", a.target.Host,
		"--port", strconv.Itoa(a.target.Port),
		"--quiet",
		"--eval", `db.adminCommand("listDatabases").databases.map(d => d.name).join("\n")`,
	}
	args = append(args, a.authArgs()...)

	result, err := a.runner.Run(ctx, CommandSpec{
		Name:    "mongosh",
		Args:    args,
		Timeout: discoveryTimeout,
	})
	if err != nil || !result.Ok() {
		a.log.Warnf("mongodb: listing databases failed: %v %s", err, strings.TrimSpace(result.Stderr))
		return nil, nil
	}

	var databases []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		name := strings.TrimSpace(line)
		if name != "" && !mongoSystemDatabases[name] {
			databases = append(databases, name)
		}
	}
	return databases, nil
}

// ExtractDatabase dumps one database into a temporary directory and zips it
// into destPath. The dump directory is removed regardless of outcome.
func (a *mongoAdapter) ExtractDatabase(ctx context.Context, name, destPath string) error {
	dumpDir := filepath.Join(a.tempDir, name+"_dump")
	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		return NewExtractionError("creating dump directory", err)
	}
	defer os.RemoveAll(dumpDir)

	args := []string{
		"--host", a.target.Host,
		"--port", strconv.Itoa(a.target.Port),
		"--db", name,
		"--out", dumpDir,
	}
	args = append(args, a.authArgs()...)
	args = append(args, splitExtraOpts(a.target.ExtraOpts)...)

	result, err := a.runner.Run(ctx, CommandSpec{
		Name:    "mongodump",
		Args:    args,
		Timeout: extractionTimeout,
	})
	if err != nil {
		return NewExtractionError(fmt.Sprintf("mongodump %s", name), err)
	}
	if !result.Ok() {
		return NewExtractionError(fmt.Sprintf("mongodump %s: %s", name, strings.TrimSpace(result.Stderr)), nil)
	}

	dbDumpPath := filepath.Join(dumpDir, name)
	if _, err := os.Stat(dbDumpPath); err != nil {
		return NewExtractionError(fmt.Sprintf("dump directory not generated: %s", dbDumpPath), err)
	}

	if err := zipDirectory(dbDumpPath, dumpDir, destPath); err != nil {
		return NewExtractionError(fmt.Sprintf("packaging dump directory for %s", name), err)
	}
	return nil
}

// zipDirectory writes every file under root into a zip at destPath, with
// member names relative to base.
func zipDirectory(root, base, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
