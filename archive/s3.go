package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/relabs-tech/sensorhub/core/logger"
)

// S3 is the implementation of the archive Driver for AWS S3
type S3 struct {
	config      aws.Config
	bucket      string
	baseKeyName string
}

// S3Configuration contains the configuration for the S3 archive driver
type S3Configuration struct {
	AWSRegion     string
	AWSBucketName string
	AccessID      string
	AccessKey     string
	KeyPrefix     string
}

// NewS3 returns a new S3
func NewS3(s3Config S3Configuration) (*S3, error) {
	if s3Config.AWSBucketName == "" {
		return nil, fmt.Errorf("AWSBucketName must not be empty")
	}

	config, err := config.LoadDefaultConfig(
		context.TODO(),
		config.WithRegion(s3Config.AWSRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s3Config.AccessID, s3Config.AccessKey, "")),
	)
	if err != nil {
		return nil, err
	}
	logger.Default().Debugln("S3 archive enabled")
	return &S3{config, s3Config.AWSBucketName, s3Config.KeyPrefix}, nil
}

// Save uploads the body to s3://{bucket}/{prefix}{endpoint}/{timestamp}[_{suffix}].json.
func (s S3) Save(endpoint, suffix string, raw []byte) error {
	client := s3.NewFromConfig(s.config)
	uploader := manager.NewUploader(client)

	objectKey := s.baseKeyName + key(endpoint, suffix, time.Now())
	_, err := uploader.Upload(context.TODO(), &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(prettyOrRaw(raw)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.Default().Error("Could not upload ", objectKey)
		return err
	}
	logger.Default().Debugf("archived %d bytes to s3 key %s", len(raw), objectKey)
	return nil
}
