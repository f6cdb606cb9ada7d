package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/domain/order"
	"github.com/example/surprisebag/internal/infrastructure/httpclient"
)

// OrderClient calls the order service's internal routes.
type OrderClient struct {
	http *httpclient.Client
}

func NewOrderClient(c *httpclient.Client) *OrderClient {
	return &OrderClient{http: c}
}

func translateOrderErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, httpclient.ErrNotFound) {
		return ErrOrderNotFound
	}
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.Status == http.StatusConflict {
		return fmt.Errorf("%w: %s", ErrOrderNotPayable, se.Body)
	}
	return apperr.Collaborator("order service", err)
}

func (c *OrderClient) GetOrder(ctx context.Context, id int64) (*order.Detail, error) {
	var d order.Detail
	err := c.http.GetJSON(ctx, fmt.Sprintf("/internal/orders/%d", id), &d)
	if err := translateOrderErr(err); err != nil {
		return nil, err
	}
	if d.Order == nil {
		return nil, apperr.Collaborator("order service", errors.New("empty order body"))
	}
	return &d, nil
}

// MarkPaid moves the order to paid. An order already paid succeeds.
func (c *OrderClient) MarkPaid(ctx context.Context, id int64) error {
	body := map[string]string{"status": string(order.StatusPaid)}
	err := c.http.Do(ctx, http.MethodPut, fmt.Sprintf("/internal/orders/%d/status", id), body, nil)
	return translateOrderErr(err)
}
