package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"multidb-backup/internal/logging"
)

// redisAdapter backs up Redis targets. Redis has no per-database dump
// notion worth preserving, so ListDatabases reports the whole-instance
// sentinel and ExtractDatabase snapshots the entire instance.
//
// Extraction is an ordered list of strategies tried in sequence: first a
// direct RDB transfer (redis-cli --rdb), then a synchronous SAVE followed
// by copying the server-side RDB file located via CONFIG GET. The first
// success wins; instance-level failure is declared only after every
// strategy has been attempted.
type redisAdapter struct {
	target     Target
	tempDir    string
	runner     CommandRunner
	log        *logging.Logger
	strategies []redisStrategy
}

type redisStrategy struct {
	name    string
	extract func(ctx context.Context, destPath string) error
}

func newRedisAdapter(target Target, tempDir string, runner CommandRunner, log *logging.Logger) *redisAdapter {
	a := &redisAdapter{
		target:  target,
		tempDir: tempDir,
		runner:  runner,
		log:     log,
	}
	a.strategies = []redisStrategy{
		{name: "rdb-transfer", extract: a.extractViaRDBTransfer},
		{name: "save-and-copy", extract: a.extractViaSaveAndCopy},
	}
	return a
}

func (a *redisAdapter) Target() Target {
	return a.target
}

// ListDatabases returns the whole-instance sentinel
func (a *redisAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	return []string{DatabasesAll}, nil
}

func (a *redisAdapter) cliArgs(extra ...string) []string {
	args := []string{
		"-h", a.target.Host,
		"-p", strconv.Itoa(a.target.Port),
	}
	if a.target.Password != "" {
		args = append(args, "-a", a.target.Password)
	}
	return append(args, extra...)
}

// ExtractDatabase snapshots the whole instance, trying each strategy in order
func (a *redisAdapter) ExtractDatabase(ctx context.Context, _ string, destPath string) error {
	var lastErr error
	for _, strategy := range a.strategies {
		if err := strategy.extract(ctx, destPath); err != nil {
			a.log.Warnf("redis: %s strategy failed: %v", strategy.name, err)
			lastErr = err
			continue
		}
		return nil
	}
	return NewExtractionError("all redis snapshot strategies failed", lastErr)
}

// extractViaRDBTransfer streams the RDB over the replication protocol
func (a *redisAdapter) extractViaRDBTransfer(ctx context.Context, destPath string) error {
	tempRDB := filepath.Join(a.tempDir, "dump.rdb")

	result, err := a.runner.Run(ctx, CommandSpec{
		Name:    "redis-cli",
		Args:    a.cliArgs("--rdb", tempRDB),
		Timeout: extractionTimeout,
	})
	if err != nil {
		return fmt.Errorf("redis-cli --rdb: %w", err)
	}
	if _, statErr := os.Stat(tempRDB); statErr != nil {
		return fmt.Errorf("rdb file not produced: %s", strings.TrimSpace(result.Stderr))
	}
	return os.Rename(tempRDB, destPath)
}

// extractViaSaveAndCopy triggers a synchronous SAVE, then locates the
// on-disk snapshot through the server's reported data dir and file name.
// It requires filesystem access to the server's data directory.
func (a *redisAdapter) extractViaSaveAndCopy(ctx context.Context, destPath string) error {
	result, err := a.runner.Run(ctx, CommandSpec{
		Name:    "redis-cli",
		Args:    a.cliArgs("SAVE"),
		Timeout: auxiliaryTimeout,
	})
	if err != nil {
		return fmt.Errorf("redis-cli SAVE: %w", err)
	}
	if !result.Ok() || !strings.Contains(result.Stdout, "OK") {
		return fmt.Errorf("SAVE failed: %s", strings.TrimSpace(result.Stderr))
	}

	dir, err := a.configGet(ctx, "dir")
	if err != nil {
		return err
	}
	dbFilename, err := a.configGet(ctx, "dbfilename")
	if err != nil {
		return err
	}

	rdbPath := filepath.Join(dir, dbFilename)
	if _, err := os.Stat(rdbPath); err != nil {
		return fmt.Errorf("server rdb not accessible at %s: %w", rdbPath, err)
	}
	return copyFile(rdbPath, destPath)
}

// configGet reads one server configuration value. The reply has the key on
// the first line and the value on the second.
func (a *redisAdapter) configGet(ctx context.Context, key string) (string, error) {
	result, err := a.runner.Run(ctx, CommandSpec{
		Name:    "redis-cli",
		Args:    a.cliArgs("CONFIG", "GET", key),
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return "", fmt.Errorf("redis-cli CONFIG GET %s: %w", key, err)
	}
	if !result.Ok() {
		return "", fmt.Errorf("CONFIG GET %s failed: %s", key, strings.TrimSpace(result.Stderr))
	}

	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	if len(lines) < 2 {
		return "", fmt.Errorf("unexpected CONFIG GET %s reply: %q", key, result.Stdout)
	}
	return strings.TrimSpace(lines[1]), nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
