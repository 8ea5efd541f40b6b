package sms

import (
	"context"
	"errors"
	"fmt"

	"roadAccident/internal/config"

	"github.com/kavenegar/kavenegar-go"
)

type KavenegarGateway struct {
	api    *kavenegar.Kavenegar
	sender string
}

func NewKavenegarGateway(cfg config.KavenegarConfig) *KavenegarGateway {
	return &KavenegarGateway{
		api:    kavenegar.New(cfg.APIKey),
		sender: cfg.Sender,
	}
}

func (g *KavenegarGateway) Send(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", errors.New("phone number is required")
	}

	return callWithContext(ctx, func() (string, error) {
		res, err := g.api.Message.Send(g.sender, []string{to}, body, nil)
		if err != nil {
			switch err := err.(type) {
			case *kavenegar.APIError:
				return "", fmt.Errorf("kavenegar API error: %w", err)
			case *kavenegar.HTTPError:
				return "", fmt.Errorf("kavenegar HTTP error: %w", err)
			default:
				return "", fmt.Errorf("kavenegar send failed: %w", err)
			}
		}
		if len(res) == 0 {
			return "", errors.New("no response entries from Kavenegar")
		}
		return fmt.Sprintf("%d", res[0].MessageID), nil
	})
}

func (g *KavenegarGateway) Name() string  { return "kavenegar" }
func (g *KavenegarGateway) Enabled() bool { return true }
