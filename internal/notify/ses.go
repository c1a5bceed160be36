package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const charset = "UTF-8"

// SESAPI is the subset of the SES v2 client used for delivery.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends email through Amazon SES.
type SESMailer struct {
	client SESAPI
}

// NewSESMailer wraps an SES client.
func NewSESMailer(client SESAPI) *SESMailer {
	return &SESMailer{client: client}
}

// SendEmail delivers a simple message with HTML and text parts.
func (m *SESMailer) SendEmail(ctx context.Context, email Email) (string, error) {
	body := &sestypes.Body{}
	if email.HTMLBody != "" {
		body.Html = &sestypes.Content{Data: aws.String(email.HTMLBody), Charset: aws.String(charset)}
	}
	if email.TextBody != "" {
		body.Text = &sestypes.Content{Data: aws.String(email.TextBody), Charset: aws.String(charset)}
	}

	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(email.From),
		Destination:      &sestypes.Destination{ToAddresses: email.To},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(email.Subject), Charset: aws.String(charset)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send email: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

var _ Mailer = (*SESMailer)(nil)
