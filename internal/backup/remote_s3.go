package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"multidb-backup/internal/logging"
)

// S3Sync implements RemoteSync against an S3 bucket
type S3Sync struct {
	client *s3.S3
	bucket string
	prefix string
	log    *logging.Logger
}

// NewS3Sync creates an S3-backed RemoteSync
func NewS3Sync(cfg S3Config, log *logging.Logger) (*S3Sync, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewConfigurationError("create AWS session", err)
	}

	return &S3Sync{
		client: s3.New(sess),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log,
	}, nil
}

func (s *S3Sync) key(namespace, name string) string {
	parts := []string{}
	if s.prefix != "" {
		parts = append(parts, strings.Trim(s.prefix, "/"))
	}
	parts = append(parts, namespace, name)
	return strings.Join(parts, "/")
}

func (s *S3Sync) namespacePrefix(namespace string) string {
	if s.prefix != "" {
		return strings.Trim(s.prefix, "/") + "/" + namespace + "/"
	}
	return namespace + "/"
}

// Upload stores one local file under the namespace. Failures are logged and
// reported as false.
func (s *S3Sync) Upload(ctx context.Context, localPath, namespace string) bool {
	start := time.Now()
	key := s.key(namespace, filepath.Base(localPath))

	file, err := os.Open(localPath)
	if err != nil {
		s.log.Errorf("open %s: %v", localPath, err)
		s.log.LogUpload(localPath, namespace, time.Since(start), false)
		return false
	}
	defer file.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err = s.client.PutObjectWithContext(uploadCtx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		s.log.Errorf("upload s3://%s/%s: %v", s.bucket, key, err)
		s.log.LogUpload(localPath, namespace, time.Since(start), false)
		return false
	}

	s.log.LogUpload(localPath, namespace, time.Since(start), true)
	return true
}

// EnforceRetention deletes namespace objects older than the retention window
func (s *S3Sync) EnforceRetention(ctx context.Context, namespace string, retentionDays int) error {
	retCtx, cancel := context.WithTimeout(ctx, retentionTimeout)
	defer cancel()

	var objects []RemoteObject
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.namespacePrefix(namespace)),
	}
	err := s.client.ListObjectsV2PagesWithContext(retCtx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				objects = append(objects, RemoteObject{
					Key:     aws.StringValue(obj.Key),
					ModTime: aws.TimeValue(obj.LastModified),
				})
			}
			return true
		})
	if err != nil {
		return NewRetentionError(fmt.Sprintf("list s3://%s/%s", s.bucket, namespace), err)
	}

	expired := expiredObjects(objects, retentionDays, time.Now())
	for _, obj := range expired {
		_, err := s.client.DeleteObjectWithContext(retCtx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(obj.Key),
		})
		if err != nil {
			return NewRetentionError(fmt.Sprintf("delete s3://%s/%s", s.bucket, obj.Key), err)
		}
		s.log.Debugf("deleted expired object s3://%s/%s", s.bucket, obj.Key)
	}

	if len(expired) > 0 {
		s.log.Infof("Deleted %d expired objects from s3://%s/%s", len(expired), s.bucket, namespace)
	}
	return nil
}

// VerifyReachable checks bucket access before any run is attempted
func (s *S3Sync) VerifyReachable(ctx context.Context) error {
	preCtx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	_, err := s.client.HeadBucketWithContext(preCtx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return NewConfigurationError(fmt.Sprintf("S3 bucket %q not reachable", s.bucket), err)
	}
	return nil
}
