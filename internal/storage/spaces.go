package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog/log"
)

// SpacesSync mirrors adhan recordings between a DigitalOcean Spaces (or any
// S3-compatible) bucket and the local asset directory.
type SpacesSync struct {
	client s3iface.S3API
	bucket string
	prefix string
}

func NewSpacesSync(endpoint, region, bucket, prefix, accessKey, secretKey string) (*SpacesSync, error) {
	config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(false),
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return NewSpacesSyncWithClient(s3.New(sess), bucket, prefix), nil
}

func NewSpacesSyncWithClient(client s3iface.S3API, bucket, prefix string) *SpacesSync {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &SpacesSync{client: client, bucket: bucket, prefix: prefix}
}

// Pull downloads every valid recording under the prefix and returns how many
// files were written. Objects with other names are skipped.
func (ss *SpacesSync) Pull(ctx context.Context, assets *Assets) (int, error) {
	var keys []string
	err := ss.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(ss.bucket),
		Prefix: aws.String(ss.prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list bucket %s: %w", ss.bucket, err)
	}

	written := 0
	for _, key := range keys {
		name := path.Base(key)
		if ValidateAssetName(name) != nil {
			log.Debug().Str("key", key).Msg("skipping object that is not an adhan recording")
			continue
		}
		if err := ss.download(ctx, key, name, assets); err != nil {
			return written, err
		}
		written++
	}
	log.Info().Int("count", written).Str("bucket", ss.bucket).Msg("adhan recordings pulled")
	return written, nil
}

func (ss *SpacesSync) download(ctx context.Context, key, name string, assets *Assets) error {
	out, err := ss.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := assets.Save(name, out.Body); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Push uploads every local recording and returns how many were sent.
func (ss *SpacesSync) Push(ctx context.Context, assets *Assets) (int, error) {
	names, err := assets.List()
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		f, err := assets.Fs().Open(assets.Path(name))
		if err != nil {
			return i, fmt.Errorf("failed to open %s: %w", name, err)
		}
		_, err = ss.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(ss.bucket),
			Key:         aws.String(ss.prefix + name),
			Body:        f,
			ContentType: aws.String(getContentType(name)),
		})
		f.Close()
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("Failed to upload file to Spaces")
			return i, fmt.Errorf("failed to upload to Spaces: %w", err)
		}
	}
	log.Info().Int("count", len(names)).Str("bucket", ss.bucket).Msg("adhan recordings pushed")
	return len(names), nil
}
