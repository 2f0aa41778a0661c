package backup

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"multidb-backup/internal/logging"
)

// AzureSync implements RemoteSync against an Azure Blob Storage container
type AzureSync struct {
	containerURL azblob.ContainerURL
	container    string
	prefix       string
	log          *logging.Logger
}

// NewAzureSync creates an Azure-backed RemoteSync
func NewAzureSync(cfg AzureConfig, log *logging.Logger) (*AzureSync, error) {
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, NewConfigurationError("create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName))
	if err != nil {
		return nil, NewConfigurationError("parse Azure service URL", err)
	}

	return &AzureSync{
		containerURL: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(cfg.Container),
		container:    cfg.Container,
		prefix:       cfg.Prefix,
		log:          log,
	}, nil
}

func (a *AzureSync) key(namespace, name string) string {
	parts := []string{}
	if a.prefix != "" {
		parts = append(parts, strings.Trim(a.prefix, "/"))
	}
	parts = append(parts, namespace, name)
	return strings.Join(parts, "/")
}

func (a *AzureSync) namespacePrefix(namespace string) string {
	if a.prefix != "" {
		return strings.Trim(a.prefix, "/") + "/" + namespace + "/"
	}
	return namespace + "/"
}

// Upload stores one local file under the namespace. Failures are logged and
// reported as false.
func (a *AzureSync) Upload(ctx context.Context, localPath, namespace string) bool {
	start := time.Now()
	blobName := a.key(namespace, filepath.Base(localPath))

	file, err := os.Open(localPath)
	if err != nil {
		a.log.Errorf("open %s: %v", localPath, err)
		a.log.LogUpload(localPath, namespace, time.Since(start), false)
		return false
	}
	defer file.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	blobURL := a.containerURL.NewBlockBlobURL(blobName)
	_, err = azblob.UploadFileToBlockBlob(uploadCtx, file, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
	})
	if err != nil {
		a.log.Errorf("upload azure://%s/%s: %v", a.container, blobName, err)
		a.log.LogUpload(localPath, namespace, time.Since(start), false)
		return false
	}

	a.log.LogUpload(localPath, namespace, time.Since(start), true)
	return true
}

// EnforceRetention deletes namespace blobs older than the retention window
func (a *AzureSync) EnforceRetention(ctx context.Context, namespace string, retentionDays int) error {
	retCtx, cancel := context.WithTimeout(ctx, retentionTimeout)
	defer cancel()

	var objects []RemoteObject
	prefix := a.namespacePrefix(namespace)
	for marker := (azblob.Marker{}); marker.NotDone(); {
		listBlob, err := a.containerURL.ListBlobsFlatSegment(retCtx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: prefix,
		})
		if err != nil {
			return NewRetentionError(fmt.Sprintf("list azure://%s/%s", a.container, namespace), err)
		}
		marker = listBlob.NextMarker

		for _, blobInfo := range listBlob.Segment.BlobItems {
			objects = append(objects, RemoteObject{
				Key:     blobInfo.Name,
				ModTime: blobInfo.Properties.LastModified,
			})
		}
	}

	expired := expiredObjects(objects, retentionDays, time.Now())
	for _, obj := range expired {
		blobURL := a.containerURL.NewBlockBlobURL(obj.Key)
		_, err := blobURL.Delete(retCtx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
		if err != nil {
			return NewRetentionError(fmt.Sprintf("delete azure://%s/%s", a.container, obj.Key), err)
		}
		a.log.Debugf("deleted expired blob azure://%s/%s", a.container, obj.Key)
	}

	if len(expired) > 0 {
		a.log.Infof("Deleted %d expired blobs from azure://%s/%s", len(expired), a.container, namespace)
	}
	return nil
}

// VerifyReachable checks container access before any run is attempted
func (a *AzureSync) VerifyReachable(ctx context.Context) error {
	preCtx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	_, err := a.containerURL.GetProperties(preCtx, azblob.LeaseAccessConditions{})
	if err != nil {
		return NewConfigurationError(fmt.Sprintf("Azure container %q not reachable", a.container), err)
	}
	return nil
}
