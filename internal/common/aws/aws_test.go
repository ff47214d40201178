// internal/common/aws/aws_test.go
package aws

import (
	"context"
	stderrors "errors"
	"testing"

	"msad-registration/internal/common/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSES struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params)
}

type mockSNS struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput) (*sns.PublishOutput, error)
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params)
}

// ==========================
// SES
// ==========================

func TestSESClient_SendEmail(t *testing.T) {
	var got *ses.SendEmailInput
	client := NewSESClientFromAPI(&mockSES{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
			got = params
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		},
	}, "no-reply@missdisability.org.za")

	id, err := client.SendEmail(context.Background(), "thandi@example.org", "Application received", "text", "<p>html</p>")
	require.NoError(t, err)

	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "no-reply@missdisability.org.za", aws.ToString(got.Source))
	assert.Equal(t, []string{"thandi@example.org"}, got.Destination.ToAddresses)
	assert.Equal(t, "Application received", aws.ToString(got.Message.Subject.Data))
	assert.Equal(t, "text", aws.ToString(got.Message.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(got.Message.Body.Html.Data))
}

func TestSESClient_SendEmailErrors(t *testing.T) {
	t.Run("rejected is permanent", func(t *testing.T) {
		client := NewSESClientFromAPI(&mockSES{
			SendEmailFunc: func(context.Context, *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
				return nil, &types.MessageRejected{Message: aws.String("Email address is not verified")}
			},
		}, "from@example.org")

		_, err := client.SendEmail(context.Background(), "x@example.org", "s", "b", "")
		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeNotificationSendFailed, stdErr.Code)
		assert.False(t, stdErr.Retryable)
	})

	t.Run("transport failure is retryable", func(t *testing.T) {
		client := NewSESClientFromAPI(&mockSES{
			SendEmailFunc: func(context.Context, *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
				return nil, stderrors.New("connection reset")
			},
		}, "from@example.org")

		_, err := client.SendEmail(context.Background(), "x@example.org", "s", "b", "")
		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok)
		assert.True(t, stdErr.Retryable)
	})
}

// ==========================
// SNS
// ==========================

func TestSNSClient_SendSMS(t *testing.T) {
	var got *sns.PublishInput
	client := NewSNSClientFromAPI(&mockSNS{
		PublishFunc: func(_ context.Context, params *sns.PublishInput) (*sns.PublishOutput, error) {
			got = params
			return &sns.PublishOutput{MessageId: aws.String("sms-1")}, nil
		},
	}, "MSAD")

	id, err := client.SendSMS(context.Background(), "082 123 4567", "Your reference is MSAD2025000123AZ9")
	require.NoError(t, err)

	assert.Equal(t, "sms-1", id)
	assert.Equal(t, "+27821234567", aws.ToString(got.PhoneNumber))
	assert.Equal(t, "MSAD", aws.ToString(got.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
	assert.Equal(t, "Transactional", aws.ToString(got.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
}

func TestSNSClient_SendSMSInvalidNumber(t *testing.T) {
	client := NewSNSClientFromAPI(&mockSNS{
		PublishFunc: func(context.Context, *sns.PublishInput) (*sns.PublishOutput, error) {
			t.Fatal("publish must not be called")
			return nil, nil
		},
	}, "")

	_, err := client.SendSMS(context.Background(), "12345", "hi")
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeBusinessRule, stdErr.Code)
}

func TestE164(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0821234567", want: "+27821234567"},
		{in: "+27 82 123 4567", want: "+27821234567"},
		{in: "27821234567", want: "+27821234567"},
		{in: "082-123-4567", want: "+27821234567"},
		{in: "821234567", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := E164(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
