package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer sends transactional mail through SES
type Mailer struct {
	client *ses.Client
	from   string
	origin string
}

// NewMailer builds an SES client from static credentials
func NewMailer(ctx context.Context, region, accessKey, secretKey, from, origin string) (*Mailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Mailer{
		client: ses.NewFromConfig(cfg),
		from:   from,
		origin: origin,
	}, nil
}

// SendPasswordReset emails a reset link built from the token
func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", m.origin, token)

	body := fmt.Sprintf(`<p>We received a request to reset your password.</p>
<p><a href="%s">Reset your password</a></p>
<p>This link expires in one hour. If you did not request a reset, you can ignore this email.</p>`, resetURL)

	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(m.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{
				Data:    aws.String("Reset your password"),
				Charset: aws.String("UTF-8"),
			},
			Body: &sestypes.Body{
				Html: &sestypes.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}
