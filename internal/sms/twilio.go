package sms

import (
	"context"
	"errors"
	"fmt"

	"roadAccident/internal/config"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioGateway struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioGateway(cfg config.TwilioConfig) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioGateway{client: client, from: cfg.From}
}

func (g *TwilioGateway) Send(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", errors.New("phone number is required")
	}

	return callWithContext(ctx, func() (string, error) {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(g.from)
		params.SetBody(body)

		resp, err := g.client.Api.CreateMessage(params)
		if err != nil {
			return "", fmt.Errorf("twilio send failed: %w", err)
		}
		if resp.Sid == nil {
			return "", errors.New("twilio returned no message sid")
		}
		return *resp.Sid, nil
	})
}

func (g *TwilioGateway) Name() string  { return "twilio" }
func (g *TwilioGateway) Enabled() bool { return true }
