// Package awsutil builds AWS SDK clients from service configuration.
package awsutil

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	configv2 "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"callagent/internal/config"
)

// NewSQSClient returns a client for real AWS, or for LocalStack when cfg.LocalstackEndpoint
// is set (e.g. http://localhost:4566). LocalStack accepts any static credentials.
func NewSQSClient(ctx context.Context, cfg config.SQSConfig) (*sqs.Client, error) {
	awsCfg, err := configv2.LoadDefaultConfig(ctx, loadOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.LocalstackEndpoint == "" {
		return sqs.NewFromConfig(awsCfg), nil
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		o.BaseEndpoint = aws.String(cfg.LocalstackEndpoint)
	}), nil
}

func loadOptions(cfg config.SQSConfig) []func(*configv2.LoadOptions) error {
	opts := []func(*configv2.LoadOptions) error{configv2.WithRegion(cfg.AWSRegion)}
	if cfg.LocalstackEndpoint != "" {
		opts = append(opts, configv2.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", ""),
		))
	}
	return opts
}
