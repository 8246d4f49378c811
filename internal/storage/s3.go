// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage archives review reports in S3-compatible object storage.
// It wraps the AWS SDK v2 and is configured for path-style access so it
// works against MinIO, CEPH and Hetzner as well as AWS.
package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"reviewd/internal/models"
)

// Archive stores report exports in a single bucket.
type Archive struct {
	s3        *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// New creates an archive client with path-style addressing. Returns
// (nil, nil) if endpoint, credentials or bucket are empty, allowing the
// app to run without object storage.
func New(endpoint, region, accessKey, secretKey, bucket string) (*Archive, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(strings.TrimRight(endpoint, "/")),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})

	return &Archive{
		s3:        client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
	}, nil
}

// Bucket returns the archive bucket name.
func (a *Archive) Bucket() string {
	return a.bucket
}

// Put stores an object under key.
func (a *Archive) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", a.bucket, key, err)
	}
	return nil
}

// PresignedURL generates a pre-signed GET URL for an archived object.
// The URL is valid for the specified duration (S3 caps it at 7 days).
func (a *Archive) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s/%s: %w", a.bucket, key, err)
	}
	return req.URL, nil
}

// ArchiveReport uploads rows as CSV and returns the object key.
func (a *Archive) ArchiveReport(ctx context.Context, name string, at time.Time, rows []models.ReviewRow) (string, error) {
	body, err := EncodeCSV(rows)
	if err != nil {
		return "", err
	}
	key := ReportKey(name, at)
	if err := a.Put(ctx, key, "text/csv; charset=utf-8", body); err != nil {
		return "", err
	}
	return key, nil
}

// ReportKey names an archived report: reports/<name>/<YYYY>/<timestamp>.csv.
func ReportKey(name string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("reports/%s/%04d/%s.csv", name, at.Year(), at.Format("20060102T150405Z"))
}

// EncodeCSV renders report rows with a header line. Missing dates are empty.
func EncodeCSV(rows []models.ReviewRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"id", "title", "kind", "path", "live", "last_review_date", "next_review_date"})
	for _, r := range rows {
		w.Write([]string{
			r.ID.String(),
			r.Title,
			r.Kind,
			r.Path,
			fmt.Sprint(r.Live),
			csvDate(r.LastReviewDate),
			csvDate(r.NextReviewDate),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode report csv: %w", err)
	}
	return buf.Bytes(), nil
}

func csvDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
