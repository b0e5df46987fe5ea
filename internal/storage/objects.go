package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/franz/bcr-index/internal/util"
)

// ObjectClient is the subset of the minio client the object gateway needs
type ObjectClient interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// ObjectConfig holds connection settings for an S3 compatible service
type ObjectConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	Region         string `mapstructure:"region"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// NewObjectClient creates a minio client with strict transport timeouts
func NewObjectClient(cfg ObjectConfig) (ObjectClient, error) {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &minioClient{Client: client}, nil
}

type minioClient struct {
	*minio.Client
}

func (c *minioClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucketName, objectName, opts)
}

// ObjectGateway serves locations of the form "bucket/prefix" from object storage.
// A single PUT replaces an object atomically, so it needs no Renamer.
type ObjectGateway struct {
	client ObjectClient
}

// NewObjectGateway creates a gateway over client
func NewObjectGateway(client ObjectClient) *ObjectGateway {
	return &ObjectGateway{client: client}
}

// splitLocation turns "bucket/some/prefix" into ("bucket", "some/prefix/")
func splitLocation(loc Location) (bucket, prefix string, err error) {
	s := strings.Trim(string(loc), "/")
	if s == "" {
		return "", "", fmt.Errorf("%w: empty object location", util.ErrInvalidName)
	}
	bucket, prefix, _ = strings.Cut(s, "/")
	if prefix != "" {
		prefix += "/"
	}
	return bucket, prefix, nil
}

func (g *ObjectGateway) object(loc Location, name string) (string, string, error) {
	if err := ValidateName(name); err != nil {
		return "", "", err
	}
	bucket, prefix, err := splitLocation(loc)
	if err != nil {
		return "", "", err
	}
	return bucket, prefix + name, nil
}

// ListFiles lists objects directly below the location prefix.
// Common prefixes are reported as directories.
func (g *ObjectGateway) ListFiles(ctx context.Context, loc Location) ([]FileEntry, error) {
	bucket, prefix, err := splitLocation(loc)
	if err != nil {
		return nil, err
	}

	var entries []FileEntry
	for obj := range g.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, util.WrapIO("list", string(loc), mapNoSuchKey(obj.Err))
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" {
			continue
		}
		if strings.HasSuffix(name, "/") {
			entries = append(entries, FileEntry{Name: strings.TrimSuffix(name, "/"), IsDirectory: true})
			continue
		}
		entries = append(entries, FileEntry{
			Name:         name,
			Type:         TypeByName(name),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return entries, nil
}

// ReadFile downloads an object
func (g *ObjectGateway) ReadFile(ctx context.Context, loc Location, name string) ([]byte, error) {
	bucket, key, err := g.object(loc, name)
	if err != nil {
		return nil, err
	}
	rc, err := g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, util.WrapIO("read", name, mapNoSuchKey(err))
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, util.WrapIO("read", name, mapNoSuchKey(err))
	}
	return data, nil
}

// WriteFile uploads data as name
func (g *ObjectGateway) WriteFile(ctx context.Context, loc Location, name string, data []byte) error {
	bucket, key, err := g.object(loc, name)
	if err != nil {
		return err
	}
	_, err = g.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: TypeByName(name)})
	if err != nil {
		return util.WrapIO("write", name, err)
	}
	return nil
}

// DeleteFile removes an object
func (g *ObjectGateway) DeleteFile(ctx context.Context, loc Location, name string) error {
	bucket, key, err := g.object(loc, name)
	if err != nil {
		return err
	}
	if err := g.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return util.WrapIO("delete", name, mapNoSuchKey(err))
	}
	return nil
}

// Exists stats an object
func (g *ObjectGateway) Exists(ctx context.Context, loc Location, name string) (bool, error) {
	bucket, key, err := g.object(loc, name)
	if err != nil {
		return false, err
	}
	if _, err := g.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		if errors.Is(mapNoSuchKey(err), util.ErrNotFound) {
			return false, nil
		}
		return false, util.WrapIO("exists", name, err)
	}
	return true, nil
}

func mapNoSuchKey(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return errors.Join(util.ErrNotFound, err)
	}
	return err
}
