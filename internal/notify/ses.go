package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESDispatcher delivers notifications through AWS SES v2.
type SESDispatcher struct {
	client *sesv2.Client
	from   string
}

// NewSESDispatcher builds a dispatcher using the default AWS credential
// chain for the given region.
func NewSESDispatcher(ctx context.Context, region, from string) (*SESDispatcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESDispatcher{
		client: sesv2.NewFromConfig(cfg),
		from:   from,
	}, nil
}

// Send renders the template and submits it as a simple email.
func (d *SESDispatcher) Send(ctx context.Context, template Template, recipient string, data map[string]string) error {
	msg, err := Render(template, data)
	if err != nil {
		return err
	}

	_, err = d.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(d.from),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	return nil
}
