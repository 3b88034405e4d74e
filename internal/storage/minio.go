package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"resume-analyzer/internal/config"
	"resume-analyzer/internal/logger"
	"resume-analyzer/internal/tracing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DocumentArchive 保存原始简历文件
type DocumentArchive interface {
	ArchiveOriginal(ctx context.Context, resumeID string, data []byte) (string, error)
}

var _ DocumentArchive = (*MinIO)(nil)

var minioTracer = otel.Tracer("resume-analyzer/storage/minio")

// objectPutter 对 minio.Client 的最小抽象
type objectPutter interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIO 按内容指纹归档原始文件
type MinIO struct {
	client objectPutter
	bucket string
}

// NewMinIO 创建客户端并确保存储桶存在
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint 未配置")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("MinIO bucket 未配置")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", cfg.BucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Location}); err != nil {
			return nil, fmt.Errorf("创建存储桶 %s 失败: %w", cfg.BucketName, err)
		}
		logger.Info().Str("bucket", cfg.BucketName).Msg("MinIO 存储桶已创建")
	}

	return &MinIO{client: client, bucket: cfg.BucketName}, nil
}

// OriginalObjectName 原始文件的对象键
func OriginalObjectName(resumeID string) string {
	return fmt.Sprintf("resume/%s/original.pdf", resumeID)
}

// ArchiveOriginal 上传原始 PDF。对象已存在时跳过，同一内容只存一份
func (m *MinIO) ArchiveOriginal(ctx context.Context, resumeID string, data []byte) (string, error) {
	objectName := OriginalObjectName(resumeID)

	ctx, span := minioTracer.Start(ctx, "MinIO.ArchiveOriginal")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", m.bucket),
		attribute.String("minio.object", objectName),
		attribute.Int("minio.size", len(data)),
	)

	if _, err := m.client.StatObject(ctx, m.bucket, objectName, minio.StatObjectOptions{}); err == nil {
		span.SetAttributes(attribute.Bool("minio.object_exists", true))
		return objectName, nil
	}

	_, err := m.client.PutObject(ctx, m.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeArchive)
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.bucket, objectName, err)
	}
	return objectName, nil
}
