// utils/reports.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"
)

var reportClient *s3.Client
var reportBucket string
var reportBaseURL string

// InitReportStore configures the S3-compatible bucket settlement reports
// are archived to. Optional: when the env vars are absent the service
// runs with archival disabled.
func InitReportStore() error {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	reportBucket = os.Getenv("R2_REPORT_BUCKET")
	if accountID == "" || accessKeyID == "" || reportBucket == "" {
		return fmt.Errorf("report store not configured")
	}
	reportBaseURL = os.Getenv("CDN_BASE_URL")
	if reportBaseURL == "" {
		reportBaseURL = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load report store config: %w", err)
	}

	reportClient = s3.NewFromConfig(cfg)
	return nil
}

// ReportsEnabled reports whether InitReportStore succeeded.
func ReportsEnabled() bool {
	return reportClient != nil
}

// UploadSettlementReport archives one settlement breakdown as JSON and
// returns its public URL. Key shape: settlements/<tournament-slug>-<ts>.json
func UploadSettlementReport(ctx context.Context, tournamentName string, report any) (string, error) {
	if reportClient == nil {
		return "", fmt.Errorf("report store not initialized")
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key := fmt.Sprintf("settlements/%s-%d.json", slug.Make(tournamentName), time.Now().UTC().Unix())
	_, err = reportClient.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(reportBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	return fmt.Sprintf("%s/%s", reportBaseURL, key), nil
}
