package backup

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mongoTarget() Target {
	return Target{
		Kind:      StoreKindMongoDB,
		Host:      "mongo.internal",
		Port:      27017,
		User:      "backup",
		Password:  "secret",
		Databases: DatabasesAll,
	}
}

func TestMongoListDatabasesExcludesSystemDatabases(t *testing.T) {
	runner := &fakeRunner{
		handler: func(spec CommandSpec) (CommandResult, error) {
			return CommandResult{Stdout: "admin\napp\nlocal\nconfig\nanalytics\n"}, nil
		},
	}
	adapter := newMongoAdapter(mongoTarget(), t.TempDir(), runner, testLogger())

	databases, err := adapter.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "analytics"}, databases)

	calls := runner.callsFor("mongosh")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Args, "--quiet")
	assert.Contains(t, calls[0].Args, "--authenticationDatabase")
	assert.Contains(t, calls[0].Args, "admin")
}

func TestMongoAuthDBOverride(t *testing.T) {
	target := mongoTarget()
	target.AuthDB = "auth_users"
	adapter := newMongoAdapter(target, t.TempDir(), &fakeRunner{}, testLogger())

	assert.Contains(t, adapter.authArgs(), "auth_users")
}

func TestMongoNoCredentialsOmitsAuthArgs(t *testing.T) {
	target := mongoTarget()
	target.User = ""
	target.Password = ""
	adapter := newMongoAdapter(target, t.TempDir(), &fakeRunner{}, testLogger())

	assert.Empty(t, adapter.authArgs())
}

func TestMongoExtractDatabaseZipsDumpDirectory(t *testing.T) {
	tempDir := t.TempDir()
	runner := &fakeRunner{
		handler: func(spec CommandSpec) (CommandResult, error) {
			if spec.Name != "mongodump" {
				return CommandResult{}, nil
			}
			// simulate mongodump writing <out>/<db>/collection files
			var outDir string
			for i, arg := range spec.Args {
				if arg == "--out" {
					outDir = spec.Args[i+1]
				}
			}
			dbDir := filepath.Join(outDir, "app")
			require.NoError(t, os.MkdirAll(dbDir, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(dbDir, "users.bson"), []byte("bson"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dbDir, "users.metadata.json"), []byte("{}"), 0o644))
			return CommandResult{}, nil
		},
	}
	adapter := newMongoAdapter(mongoTarget(), tempDir, runner, testLogger())

	destPath := filepath.Join(tempDir, "app.zip")
	err := adapter.ExtractDatabase(context.Background(), "app", destPath)
	require.NoError(t, err)

	reader, err := zip.OpenReader(destPath)
	require.NoError(t, err)
	defer reader.Close()

	var members []string
	for _, f := range reader.File {
		members = append(members, f.Name)
	}
	assert.ElementsMatch(t, []string{"app/users.bson", "app/users.metadata.json"}, members)

	// the intermediate dump directory must be gone
	assert.NoDirExists(t, filepath.Join(tempDir, "app_dump"))
}

func TestMongoExtractDatabaseDumpFailure(t *testing.T) {
	runner := &fakeRunner{
		handler: func(spec CommandSpec) (CommandResult, error) {
			return CommandResult{ExitCode: 1, Stderr: "Unauthorized"}, nil
		},
	}
	adapter := newMongoAdapter(mongoTarget(), t.TempDir(), runner, testLogger())

	err := adapter.ExtractDatabase(context.Background(), "app", filepath.Join(t.TempDir(), "app.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}
