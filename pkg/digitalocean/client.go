package digitalocean

import (
	"context"
	"fmt"

	"github.com/digitalocean/godo"
)

// client reads the hosting account balance shown to owners in /stats.
type client struct {
	api *godo.Client
}

func NewClient(token string) *client {
	return &client{
		api: godo.NewFromToken(token),
	}
}

func newClientWithAPI(api *godo.Client) *client {
	return &client{api: api}
}

func (c *client) GetBalanceMessage(ctx context.Context) (string, error) {
	b, _, err := c.api.Balance.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching balance: %w", err)
	}

	return fmt.Sprintf("Hosting balance\nMonth-to-date usage: $%s\nAccount balance:     $%s",
		b.MonthToDateUsage, b.AccountBalance), nil
}
