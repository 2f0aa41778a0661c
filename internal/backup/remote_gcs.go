package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"multidb-backup/internal/logging"
)

// GCSSync implements RemoteSync against a Google Cloud Storage bucket
type GCSSync struct {
	client *storage.Client
	bucket string
	prefix string
	log    *logging.Logger
}

// NewGCSSync creates a GCS-backed RemoteSync
func NewGCSSync(ctx context.Context, cfg GCSConfig, log *logging.Logger) (*GCSSync, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, NewConfigurationError("create GCS client", err)
	}

	return &GCSSync{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log,
	}, nil
}

func (g *GCSSync) key(namespace, name string) string {
	parts := []string{}
	if g.prefix != "" {
		parts = append(parts, strings.Trim(g.prefix, "/"))
	}
	parts = append(parts, namespace, name)
	return strings.Join(parts, "/")
}

func (g *GCSSync) namespacePrefix(namespace string) string {
	if g.prefix != "" {
		return strings.Trim(g.prefix, "/") + "/" + namespace + "/"
	}
	return namespace + "/"
}

// Upload stores one local file under the namespace. Failures are logged and
// reported as false.
func (g *GCSSync) Upload(ctx context.Context, localPath, namespace string) bool {
	start := time.Now()
	key := g.key(namespace, filepath.Base(localPath))

	file, err := os.Open(localPath)
	if err != nil {
		g.log.Errorf("open %s: %v", localPath, err)
		g.log.LogUpload(localPath, namespace, time.Since(start), false)
		return false
	}
	defer file.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(uploadCtx)
	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		g.log.Errorf("upload gs://%s/%s: %v", g.bucket, key, err)
		g.log.LogUpload(localPath, namespace, time.Since(start), false)
		return false
	}
	if err := writer.Close(); err != nil {
		g.log.Errorf("finalize gs://%s/%s: %v", g.bucket, key, err)
		g.log.LogUpload(localPath, namespace, time.Since(start), false)
		return false
	}

	g.log.LogUpload(localPath, namespace, time.Since(start), true)
	return true
}

// EnforceRetention deletes namespace objects older than the retention window
func (g *GCSSync) EnforceRetention(ctx context.Context, namespace string, retentionDays int) error {
	retCtx, cancel := context.WithTimeout(ctx, retentionTimeout)
	defer cancel()

	bucket := g.client.Bucket(g.bucket)
	it := bucket.Objects(retCtx, &storage.Query{Prefix: g.namespacePrefix(namespace)})

	var objects []RemoteObject
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return NewRetentionError(fmt.Sprintf("list gs://%s/%s", g.bucket, namespace), err)
		}
		objects = append(objects, RemoteObject{Key: attrs.Name, ModTime: attrs.Updated})
	}

	expired := expiredObjects(objects, retentionDays, time.Now())
	for _, obj := range expired {
		if err := bucket.Object(obj.Key).Delete(retCtx); err != nil {
			return NewRetentionError(fmt.Sprintf("delete gs://%s/%s", g.bucket, obj.Key), err)
		}
		g.log.Debugf("deleted expired object gs://%s/%s", g.bucket, obj.Key)
	}

	if len(expired) > 0 {
		g.log.Infof("Deleted %d expired objects from gs://%s/%s", len(expired), g.bucket, namespace)
	}
	return nil
}

// VerifyReachable checks bucket access before any run is attempted
func (g *GCSSync) VerifyReachable(ctx context.Context) error {
	preCtx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	if _, err := g.client.Bucket(g.bucket).Attrs(preCtx); err != nil {
		return NewConfigurationError(fmt.Sprintf("GCS bucket %q not reachable", g.bucket), err)
	}
	return nil
}
