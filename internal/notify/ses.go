package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SES emails security events to an operator address through AWS SES.
type SES struct {
	client *ses.Client
	from   string
	to     string
}

// NewSES creates an SES notifier for the given region and addresses.
func NewSES(region, from, to string) (*SES, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SES{
		client: ses.NewFromConfig(cfg),
		from:   from,
		to:     to,
	}, nil
}

// Name returns the provider name for logging.
func (s *SES) Name() string { return "ses" }

// Send emails a plain-text summary of the event.
func (s *SES) Send(ctx context.Context, event Event) error {
	subject := fmt.Sprintf("[tablegate] %s for %s", event.Type, event.Email)

	var b strings.Builder
	fmt.Fprintf(&b, "Event:        %s\n", event.Type)
	fmt.Fprintf(&b, "Email:        %s\n", event.Email)
	fmt.Fprintf(&b, "IP address:   %s\n", event.IPAddress)
	fmt.Fprintf(&b, "Reason:       %s\n", event.Reason)
	if event.BlockedUntil != nil {
		fmt.Fprintf(&b, "Blocked until: %s\n", event.BlockedUntil.UTC().Format(time.RFC3339))
	}
	if event.MaxAttempts > 0 {
		fmt.Fprintf(&b, "Policy:       %d attempts / %s block\n", event.MaxAttempts, event.BlockDuration)
	}
	fmt.Fprintf(&b, "At:           %s\n", event.Timestamp.UTC().Format(time.RFC3339))

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{s.to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(b.String()), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
