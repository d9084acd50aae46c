package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"customerIntel/domain"
	"customerIntel/pkg/config"
	"customerIntel/pkg/logger"
)

// SendMessageAPI is the slice of the SQS client the publisher uses.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ConversionPublisher hands pending conversions to the ad-network delivery
// workers through an SQS queue.
type ConversionPublisher struct {
	client   SendMessageAPI
	queueURL string
}

func NewConversionPublisher(client SendMessageAPI, queueURL string) *ConversionPublisher {
	return &ConversionPublisher{client: client, queueURL: queueURL}
}

// NewClient builds an SQS client. A configured endpoint means local ElasticMQ
// with static dummy credentials.
func NewClient(ctx context.Context, cfg config.SQSConfig) (*sqs.Client, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	var clientOpts []func(*sqs.Options)
	if cfg.Endpoint != "" {
		logger.Info("configuring SQS for local development", "endpoint", cfg.Endpoint)
		configOpts = append(configOpts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))
		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return sqs.NewFromConfig(awsCfg, clientOpts...), nil
}

// conversionMessage is the queue body; the delivery worker needs the
// platform payload and hashed user data only.
type conversionMessage struct {
	ConversionID string                 `json:"conversion_id"`
	AdAccountID  uint                   `json:"ad_account_id"`
	Platform     domain.AdPlatform      `json:"platform"`
	EventType    domain.EventType       `json:"event_type"`
	RetryCount   int                    `json:"retry_count"`
	UserData     domain.AdUserData      `json:"user_data"`
	Payload      domain.PlatformPayload `json:"payload"`
}

func (p *ConversionPublisher) Publish(ctx context.Context, c domain.Conversion) error {
	body, err := json.Marshal(conversionMessage{
		ConversionID: c.ConversionID,
		AdAccountID:  c.AdAccountID,
		Platform:     c.Platform,
		EventType:    c.EventType,
		RetryCount:   c.RetryCount,
		UserData:     c.UserData.Data(),
		Payload:      c.Payload.Data(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal conversion: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"Platform": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(c.Platform)),
			},
			"RetryCount": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(c.RetryCount)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send conversion to SQS: %w", err)
	}

	logger.Debug("conversion published", "conversion_id", c.ConversionID, "platform", c.Platform)
	return nil
}
