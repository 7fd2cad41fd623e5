/*
Copyright (C) 2026  quillfs contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package filestore

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ArchiveConfig describes an S3 or S3-compatible (MinIO) target for
// checkpoint archival.
type S3ArchiveConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

// S3Archive uploads compressed checkpoints to an S3 bucket. The client
// is opened lazily on first use so a configured-but-unreachable backend
// never blocks server startup.
type S3Archive struct {
	cfg S3ArchiveConfig

	mu     sync.Mutex
	client *s3.Client
	opened bool
}

func NewS3Archive(cfg S3ArchiveConfig) *S3Archive {
	return &S3Archive{cfg: cfg}
}

func (a *S3Archive) Name() string { return "s3" }

func (a *S3Archive) ensureOpen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened {
		return nil
	}

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if a.cfg.Region != "" {
		opts = append(opts, config.WithRegion(a.cfg.Region))
	}
	if a.cfg.AccessKeyID != "" && a.cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.cfg.AccessKeyID, a.cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("s3 archive: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if a.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(a.cfg.Endpoint) })
	}
	if a.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	a.client = s3.NewFromConfig(awsCfg, s3Opts...)
	a.opened = true
	return nil
}

func (a *S3Archive) key(filename, tag string) string {
	pfx := a.cfg.Prefix
	if pfx != "" {
		return pfx + "/" + filename + "." + tag + ".xz"
	}
	return filename + "." + tag + ".xz"
}

// Put uploads the xz-compressed checkpoint under <prefix>/<filename>.<tag>.xz.
func (a *S3Archive) Put(filename, tag string, compressed []byte) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	_, err := a.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.key(filename, tag)),
		Body:   bytes.NewReader(compressed),
	})
	if err != nil {
		return fmt.Errorf("s3 archive: put %s/%s: %w", filename, tag, err)
	}
	return nil
}
