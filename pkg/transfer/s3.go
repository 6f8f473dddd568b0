package transfer

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/yurykabanov/archivist/pkg/domain"
)

type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Tool uploads with the AWS SDK, for hosts without the aws CLI. The client
// is created on first use so that a run without S3 uploads never loads AWS
// configuration.
type S3Tool struct {
	cfg S3Config

	mu     sync.Mutex
	client S3API
}

func NewS3Tool(cfg S3Config) *S3Tool {
	return &S3Tool{cfg: cfg}
}

// NewS3ToolWithClient uses an existing client, mostly for tests.
func NewS3ToolWithClient(client S3API) *S3Tool {
	return &S3Tool{client: client}
}

func (t *S3Tool) Name() string { return "s3" }

func (t *S3Tool) Send(ctx context.Context, localPath, target string) error {
	bucket, key, err := ObjectLocation(target, filepath.Base(localPath))
	if err != nil {
		return err
	}

	client, err := t.getClient(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "unable to open artifact")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "unable to stat artifact")
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return errors.Wrapf(err, "unable to put s3://%s/%s", bucket, key)
	}

	return nil
}

func (t *S3Tool) getClient(ctx context.Context) (S3API, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}

	var opts []func(*config.LoadOptions) error
	if t.cfg.Region != "" {
		opts = append(opts, config.WithRegion(t.cfg.Region))
	}
	if t.cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(t.cfg.AccessKeyID, t.cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load AWS configuration")
	}

	t.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if t.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(t.cfg.Endpoint)
		}
		o.UsePathStyle = t.cfg.PathStyle
	})

	return t.client, nil
}

// ObjectLocation splits an s3://bucket/prefix target into bucket and the
// object key for a file named name.
func ObjectLocation(target, name string) (bucket, key string, err error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", domain.ConfigErrorf("invalid s3 target %q, expected s3://bucket/prefix", target)
	}

	prefix := strings.Trim(u.Path, "/")
	return u.Host, path.Join(prefix, name), nil
}
