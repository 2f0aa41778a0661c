package backup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"multidb-backup/internal/logging"
)

// Timeouts for external tool invocations. Dumps get a generous bound so a
// hung tool is treated as a failure rather than blocking the run forever.
const (
	discoveryTimeout  = 30 * time.Second
	extractionTimeout = time.Hour
	auxiliaryTimeout  = 5 * time.Minute
)

// SourceAdapter is the contract every data-store adapter satisfies.
//
// ListDatabases resolves the target's database-selection policy: an explicit
// set is returned verbatim in order; "all" queries the live instance and
// excludes system databases. Discovery fails soft — adapters log query
// failures and return an empty list so the target is skipped, not failed.
//
// ExtractDatabase performs a native, consistency-preserving dump of one
// logical database to destPath, bounded by extractionTimeout.
type SourceAdapter interface {
	Target() Target
	ListDatabases(ctx context.Context) ([]string, error)
	ExtractDatabase(ctx context.Context, name, destPath string) error
}

// AuxiliaryExtractor is an optional adapter capability for store-wide objects
// not scoped to one database (e.g. PostgreSQL roles and grants). Failures are
// best-effort: logged and ignored, never escalated.
type AuxiliaryExtractor interface {
	ExtractAuxiliary(ctx context.Context) ([]ExtractedItem, error)
}

// NewAdapter constructs the adapter for a target's store kind
func NewAdapter(target Target, tempDir string, runner CommandRunner, log *logging.Logger) (SourceAdapter, error) {
	switch target.Kind {
	case StoreKindPostgreSQL:
		return newPostgresAdapter(target, tempDir, runner, log), nil
	case StoreKindMySQL, StoreKindMariaDB:
		return newMySQLFamilyAdapter(target, runner, log), nil
	case StoreKindMongoDB:
		return newMongoAdapter(target, tempDir, runner, log), nil
	case StoreKindRedis:
		return newRedisAdapter(target, tempDir, runner, log), nil
	default:
		return nil, NewConfigurationError(fmt.Sprintf("unsupported store kind: %s", target.Kind), nil)
	}
}

// ErrNoDatabases marks a target whose discovery produced nothing to back up.
// The orchestrator converts it into a skipped outcome, not a failure.
var ErrNoDatabases = NewDiscoveryError("no databases found", nil)

// ExtractAll runs the shared extraction pipeline for one adapter: resolve the
// database list, dump each database sequentially into tempDir, then append
// any auxiliary items. A failed individual extraction is logged and excluded;
// the target fails here only when nothing at all could be extracted.
func ExtractAll(ctx context.Context, adapter SourceAdapter, tempDir string, log *logging.Logger) ([]ExtractedItem, error) {
	target := adapter.Target()
	kind := target.Kind

	databases, err := adapter.ListDatabases(ctx)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"store": string(kind),
			"error": err.Error(),
		}).Warn("Database discovery failed")
		return nil, ErrNoDatabases
	}
	if len(databases) == 0 {
		return nil, ErrNoDatabases
	}

	log.Infof("%s: found %d database(s): %s", kind, len(databases), strings.Join(databases, ", "))

	var items []ExtractedItem
	for _, name := range databases {
		destPath := extractPath(tempDir, kind, name)

		start := time.Now()
		if err := adapter.ExtractDatabase(ctx, name, destPath); err != nil {
			log.LogExtraction(string(kind), name, 0, time.Since(start), err)
			continue
		}

		info, err := os.Stat(destPath)
		if err != nil {
			log.LogExtraction(string(kind), name, 0, time.Since(start),
				NewExtractionError(fmt.Sprintf("dump file not found: %s", destPath), err))
			continue
		}

		log.LogExtraction(string(kind), name, info.Size(), time.Since(start), nil)
		items = append(items, ExtractedItem{
			Target: target,
			Name:   name,
			Path:   destPath,
			Size:   info.Size(),
		})
	}

	if aux, ok := adapter.(AuxiliaryExtractor); ok {
		extra, err := aux.ExtractAuxiliary(ctx)
		if err != nil {
			log.Warnf("%s: auxiliary extraction failed: %v", kind, err)
		} else {
			items = append(items, extra...)
		}
	}

	if len(items) == 0 {
		return nil, NewExtractionError("every database extraction failed", nil).WithKind(kind)
	}

	return items, nil
}

func extractPath(tempDir string, kind StoreKind, name string) string {
	switch kind {
	case StoreKindMongoDB:
		return fmt.Sprintf("%s/%s.zip", tempDir, name)
	case StoreKindRedis:
		return fmt.Sprintf("%s/%s.rdb", tempDir, string(kind))
	default:
		return fmt.Sprintf("%s/%s.sql", tempDir, name)
	}
}

// splitDatabases parses an explicit comma-separated selection policy
func splitDatabases(policy string) []string {
	var out []string
	for _, name := range strings.Split(policy, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitExtraOpts parses free-form extra dump-tool arguments
func splitExtraOpts(opts string) []string {
	return strings.Fields(opts)
}
