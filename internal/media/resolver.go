package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/postflow/configs"
)

const presignExpiry = time.Hour

// ErrUnresolvable means a media reference can never be turned into a URL
// with the current configuration.
var ErrUnresolvable = errors.New("media reference cannot be resolved")

// R2Resolver turns media references into URLs a platform can fetch. Refs that
// already are http(s) URLs are kept; bare object keys are presigned against
// the configured R2 bucket, or joined to the bucket's public URL when no
// credentials are configured.
type R2Resolver struct {
	bucket    string
	publicURL string
	presign   *s3.PresignClient
}

func NewR2Resolver(ctx context.Context, c cfg.R2) (*R2Resolver, error) {
	r := &R2Resolver{bucket: c.BucketName, publicURL: strings.TrimSuffix(c.PublicURL, "/")}
	if c.AccessKey == "" || c.SecretKey == "" || c.BucketName == "" {
		return r, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("load r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID))
	})
	r.presign = s3.NewPresignClient(client)
	return r, nil
}

func (r *R2Resolver) Resolve(ctx context.Context, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
			urls = append(urls, ref)
			continue
		}

		key := strings.TrimPrefix(ref, "/")
		switch {
		case r.presign != nil:
			req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(r.bucket),
				Key:    aws.String(key),
			}, s3.WithPresignExpires(presignExpiry))
			if err != nil {
				return nil, fmt.Errorf("presign %s: %w", key, err)
			}
			urls = append(urls, req.URL)
		case r.publicURL != "":
			urls = append(urls, r.publicURL+"/"+key)
		default:
			return nil, fmt.Errorf("%w: %q is not a URL and no bucket is configured", ErrUnresolvable, ref)
		}
	}
	return urls, nil
}
