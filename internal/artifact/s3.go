package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/droidtune-io/droidtune/internal/ir"
	"github.com/droidtune-io/droidtune/internal/logging"
)

// Publisher uploads a run's artifact set to S3, with optional
// DynamoDB-based device locking to keep two machines from mutating the
// same device concurrently.
type Publisher struct {
	bucket        string
	prefix        string
	region        string
	dynamoDBTable string
	encrypt       bool

	s3Client *s3.Client
	dbClient *dynamodb.Client
	lockID   string
}

// NewPublisher builds a Publisher from the profile's publish block.
func NewPublisher(ctx context.Context, cfg *ir.PublishConfig) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("publish requires 'bucket' configuration")
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "droidtune/runs"
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	p := &Publisher{
		bucket:        cfg.Bucket,
		prefix:        prefix,
		region:        region,
		dynamoDBTable: cfg.DynamoDBTable,
		encrypt:       cfg.Encrypt,
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(region))
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	p.s3Client = s3.NewFromConfig(awsCfg)
	if p.dynamoDBTable != "" {
		p.dbClient = dynamodb.NewFromConfig(awsCfg)
	}

	return p, nil
}

// RunID derives the publication key segment for one run.
func RunID(start time.Time) string {
	return start.UTC().Format("20060102T150405Z")
}

// Publish uploads files under <prefix>/<serial>/<runID>/. Contents are
// encrypted client-side when the environment key is set. Returns the
// uploaded object keys.
func (p *Publisher) Publish(ctx context.Context, serial, runID string, files []string) ([]string, error) {
	var keys []string
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return keys, fmt.Errorf("failed to read artifact %s: %w", file, err)
		}

		encrypted, err := Encrypt(content)
		if err != nil {
			return keys, fmt.Errorf("failed to encrypt artifact %s: %w", file, err)
		}

		key := path.Join(p.prefix, serial, runID, filepath.Base(file))
		input := &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(encrypted),
		}
		if p.encrypt {
			input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
		}

		if _, err := p.s3Client.PutObject(ctx, input); err != nil {
			return keys, fmt.Errorf("failed to upload s3://%s/%s: %w", p.bucket, key, err)
		}
		logging.Debug("published artifact", "bucket", p.bucket, "key", key)
		keys = append(keys, key)
	}
	return keys, nil
}

// LockDevice takes a cross-machine lock on the device serial. A no-op
// when no DynamoDB table is configured.
func (p *Publisher) LockDevice(ctx context.Context, serial string) error {
	if p.dynamoDBTable == "" {
		return nil
	}

	p.lockID = fmt.Sprintf("droidtune-%d-%d", os.Getpid(), time.Now().UnixNano())

	_, err := p.dbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.dynamoDBTable),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: serial},
			"Info":    &dbtypes.AttributeValueMemberS{Value: p.lockID},
			"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return fmt.Errorf("device %s is locked by another run. If this is an error, "+
				"manually delete the lock item with LockID=%q from DynamoDB table %q",
				serial, serial, p.dynamoDBTable)
		}
		return fmt.Errorf("failed to acquire device lock: %w", err)
	}

	return nil
}

// UnlockDevice releases the device lock.
func (p *Publisher) UnlockDevice(ctx context.Context, serial string) error {
	if p.dynamoDBTable == "" {
		return nil
	}

	_, err := p.dbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(p.dynamoDBTable),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: serial},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release device lock: %w", err)
	}

	return nil
}
