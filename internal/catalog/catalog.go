// Package catalog reads bags, merchants and users from the services that own
// them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/infrastructure/httpclient"
)

var (
	ErrBagNotFound      = apperr.New(apperr.KindNotFound, "bag_not_found", "Bag not found")
	ErrMerchantNotFound = apperr.New(apperr.KindNotFound, "merchant_not_found", "Merchant not found")
	ErrUserNotFound     = apperr.New(apperr.KindNotFound, "user_not_found", "User not found")
)

// Bag is a surprise bag listing as seen at order time.
type Bag struct {
	ID          int64           `json:"id"`
	MerchantID  int64           `json:"merchantId"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	PickupStart *time.Time      `json:"pickupStart,omitempty"`
	PickupEnd   *time.Time      `json:"pickupEnd,omitempty"`
}

type Merchant struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type User struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
}

// translate maps transport outcomes onto the error taxonomy.
func translate(service string, notFound *apperr.Error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, httpclient.ErrNotFound) {
		return notFound
	}
	return apperr.Collaborator(service, err)
}

type BagClient struct {
	http *httpclient.Client
}

func NewBagClient(c *httpclient.Client) *BagClient {
	return &BagClient{http: c}
}

func (c *BagClient) GetBag(ctx context.Context, id int64) (*Bag, error) {
	var bag Bag
	err := c.http.GetJSON(ctx, "/internal/bags/"+strconv.FormatInt(id, 10), &bag)
	if err := translate("catalog service", ErrBagNotFound, err); err != nil {
		return nil, err
	}
	return &bag, nil
}

func (c *BagClient) ListBagIDsByMerchant(ctx context.Context, merchantID int64) ([]int64, error) {
	var resp struct {
		BagIDs []int64 `json:"bagIds"`
	}
	err := c.http.GetJSON(ctx, fmt.Sprintf("/internal/merchants/%d/bag-ids", merchantID), &resp)
	if err := translate("catalog service", ErrMerchantNotFound, err); err != nil {
		return nil, err
	}
	return resp.BagIDs, nil
}

type MerchantClient struct {
	http *httpclient.Client
}

func NewMerchantClient(c *httpclient.Client) *MerchantClient {
	return &MerchantClient{http: c}
}

func (c *MerchantClient) GetMerchantByUser(ctx context.Context, userID int64) (*Merchant, error) {
	var m Merchant
	err := c.http.GetJSON(ctx, fmt.Sprintf("/internal/merchants/by-user/%d", userID), &m)
	if err := translate("merchant service", ErrMerchantNotFound, err); err != nil {
		return nil, err
	}
	return &m, nil
}

// MerchantIDByUser resolves the merchant a user acts for.
func (c *MerchantClient) MerchantIDByUser(ctx context.Context, userID int64) (int64, error) {
	m, err := c.GetMerchantByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

type UserClient struct {
	http *httpclient.Client
}

func NewUserClient(c *httpclient.Client) *UserClient {
	return &UserClient{http: c}
}

func (c *UserClient) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := c.http.GetJSON(ctx, "/internal/users/"+strconv.FormatInt(id, 10), &u)
	if err := translate("user service", ErrUserNotFound, err); err != nil {
		return nil, err
	}
	return &u, nil
}
