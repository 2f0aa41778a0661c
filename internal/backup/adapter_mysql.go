package backup

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"multidb-backup/internal/logging"
)

// System schemas never included when the selection policy is "all"
var mysqlSystemDatabases = map[string]bool{
	"information_schema": true,
	"performance_schema": true,
	"mysql":              true,
	"sys":                true,
}

// mysqlFamilyAdapter backs up MySQL and MariaDB targets. Discovery goes
// through the MySQL wire protocol (both speak it); dumps use the native
// dump tool for the configured kind.
type mysqlFamilyAdapter struct {
	target   Target
	dumpTool string
	runner   CommandRunner
	log      *logging.Logger

	// openDB is swappable so tests can inject sqlmock
	openDB func() (*sql.DB, error)
}

func newMySQLFamilyAdapter(target Target, runner CommandRunner, log *logging.Logger) *mysqlFamilyAdapter {
	dumpTool := "mysqldump"
	if target.Kind == StoreKindMariaDB {
		dumpTool = "mariadb-dump"
	}

	a := &mysqlFamilyAdapter{
		target:   target,
		dumpTool: dumpTool,
		runner:   runner,
		log:      log,
	}
	a.openDB = func() (*sql.DB, error) {
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/?timeout=30s",
			target.User, target.Password, target.Host, target.Port)
		return sql.Open("mysql", dsn)
	}
	return a
}

func (a *mysqlFamilyAdapter) Target() Target {
	return a.target
}

// ListDatabases resolves the selection policy. "all" runs SHOW DATABASES
// over the wire and drops the system schemas; discovery failures log and
// return empty so the target is skipped rather than failed.
func (a *mysqlFamilyAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	if a.target.Databases != DatabasesAll {
		return splitDatabases(a.target.Databases), nil
	}

	db, err := a.openDB()
	if err != nil {
		a.log.Warnf("%s: opening connection failed: %v", a.target.Kind, err)
		return nil, nil
	}
	defer db.Close()

	queryCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, "SHOW DATABASES")
	if err != nil {
		a.log.Warnf("%s: listing databases failed: %v", a.target.Kind, err)
		return nil, nil
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			a.log.Warnf("%s: scanning database name failed: %v", a.target.Kind, err)
			return nil, nil
		}
		if !mysqlSystemDatabases[name] {
			databases = append(databases, name)
		}
	}
	if err := rows.Err(); err != nil {
		a.log.Warnf("%s: listing databases failed: %v", a.target.Kind, err)
		return nil, nil
	}

	return databases, nil
}

// ExtractDatabase dumps one database with the native dump tool. The flags
// keep the dump transactionally consistent and complete: single-transaction
// snapshot plus routines, triggers, and events.
func (a *mysqlFamilyAdapter) ExtractDatabase(ctx context.Context, name, destPath string) error {
	args := []string{
		"-h", a.target.Host,
		"-P", fmt.Sprintf("%d", a.target.Port),
		"-u", a.target.User,
		"--single-transaction",
		"--routines",
		"--triggers",
		"--events",
	}
	args = append(args, splitExtraOpts(a.target.ExtraOpts)...)
	args = append(args, name)

	result, err := a.runner.Run(ctx, CommandSpec{
		Name:       a.dumpTool,
		Args:       args,
		Env:        []string{"MYSQL_PWD=" + a.target.Password},
		StdoutFile: destPath,
		Timeout:    extractionTimeout,
	})
	if err != nil {
		return NewExtractionError(fmt.Sprintf("%s %s", a.dumpTool, name), err)
	}
	if !result.Ok() {
		return NewExtractionError(fmt.Sprintf("%s %s: %s", a.dumpTool, name, strings.TrimSpace(result.Stderr)), nil)
	}
	return nil
}
