// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"
	"strings"

	"msad-registration/internal/common/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the part of the SNS client the confirmation SMS needs.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	api      SNSAPI
	senderID string
}

func NewSNSClient(ctx context.Context, region, senderID string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SNSClient{api: sns.NewFromConfig(cfg), senderID: senderID}, nil
}

func NewSNSClientFromAPI(api SNSAPI, senderID string) *SNSClient {
	return &SNSClient{api: api, senderID: senderID}
}

// SendSMS publishes a transactional SMS to a South African number.
func (s *SNSClient) SendSMS(ctx context.Context, phone, message string) (string, error) {
	number, err := E164(phone)
	if err != nil {
		return "", errors.NewBusinessRuleError("Invalid phone number", err.Error())
	}

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.api.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(number),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", errors.NewNotificationSendFailedError("sms", err)
	}
	return aws.ToString(out.MessageId), nil
}

// E164 converts "082 123 4567", "0821234567" or "+27821234567" to
// "+27821234567".
func E164(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '+' {
			return r
		}
		return -1
	}, phone)

	switch {
	case strings.HasPrefix(digits, "+27") && len(digits) == 12:
		return digits, nil
	case strings.HasPrefix(digits, "27") && len(digits) == 11:
		return "+" + digits, nil
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "+27" + digits[1:], nil
	}
	return "", fmt.Errorf("cannot convert %q to E.164", phone)
}
