package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/bulkmailer/internal/domain"
)

// SESSender sends emails via AWS SES using the SDK v2.
type SESSender struct {
	client sesAPI
	region string
}

// sesAPI is the slice of the SES client the adapter uses.
type sesAPI interface {
	SendEmail(ctx context.Context, input *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetAccount(ctx context.Context, input *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
}

// sesDefaults holds server-wide fallback IAM credentials for provider
// records stored without their own keys. Set once at startup.
var sesDefaults struct {
	region    string
	accessKey string
	secretKey string
}

// SetSESDefaults configures the fallback region and IAM key pair used by
// SES providers whose records carry no credentials of their own.
func SetSESDefaults(region, accessKey, secretKey string) {
	sesDefaults.region = region
	sesDefaults.accessKey = accessKey
	sesDefaults.secretKey = secretKey
}

// NewSESSender creates an SES adapter from a provider record. APIKey and
// APISecret carry the IAM access key pair; with both empty the
// server-wide defaults apply, then the ambient credential chain.
func NewSESSender(cfg *domain.ProviderConfig) (*SESSender, error) {
	region := cfg.Region
	if region == "" {
		region = sesDefaults.region
	}
	if region == "" {
		region = "us-east-1"
	}

	key, secret := cfg.APIKey, cfg.APISecret
	if key == "" || secret == "" {
		key, secret = sesDefaults.accessKey, sesDefaults.secretKey
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if key != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("ses config: %w", err)
	}

	return &SESSender{client: sesv2.NewFromConfig(awsCfg), region: region}, nil
}

func (s *SESSender) Provider() domain.ProviderType { return domain.ProviderSES }

// Send delivers a single email through AWS SES.
func (s *SESSender) Send(ctx context.Context, msg *Message) (Outcome, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(formatFrom(msg.FromEmail, msg.FromName)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.BodyHTML), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody(msg)), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return classifySESError(err), nil
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	return accepted(messageID, "ses accepted"), nil
}

// TestConnection verifies the credentials by fetching account details.
func (s *SESSender) TestConnection(ctx context.Context) error {
	_, err := s.client.GetAccount(ctx, &sesv2.GetAccountInput{})
	if err != nil {
		return fmt.Errorf("ses credential check: %w", err)
	}
	return nil
}

// classifySESError maps typed SDK errors to outcomes. Rejections and bad
// requests are permanent; throttling and everything else transient.
func classifySESError(err error) Outcome {
	var rejected *types.MessageRejected
	var badReq *types.BadRequestException
	var mailFrom *types.MailFromDomainNotVerifiedException
	var throttled *types.TooManyRequestsException

	switch {
	case errors.As(err, &rejected):
		return permanent(fmt.Sprintf("ses rejected message: %v", err), err.Error())
	case errors.As(err, &badReq):
		return permanent(fmt.Sprintf("ses bad request: %v", err), err.Error())
	case errors.As(err, &mailFrom):
		return permanent(fmt.Sprintf("ses sender domain not verified: %v", err), err.Error())
	case errors.As(err, &throttled):
		return transient("ses rate limited", err.Error())
	default:
		return classifyTransportError("ses", err)
	}
}
