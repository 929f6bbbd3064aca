package auth

import (
	"context"
	"errors"

	xhttp "MarketSync/pkg/http"
)

// Acquirer obtains a fresh bearer token from one backend.
type Acquirer interface {
	Acquire(ctx context.Context) (string, error)
}

type tokenResponse struct {
	Token string `json:"token"`
}

// HTTPAcquirer POSTs a JSON credential body and expects {"token": "..."} back.
type HTTPAcquirer struct {
	client *xhttp.Client
	url    string
	body   interface{}
}

func NewHTTPAcquirer(client *xhttp.Client, url string, body interface{}) *HTTPAcquirer {
	return &HTTPAcquirer{client: client, url: url, body: body}
}

// HistoricalCredentials is the login body of the historical backend.
type HistoricalCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LiveCredentials is the login body of the live feed.
type LiveCredentials struct {
	APIKey string `json:"api_key"`
}

func (a *HTTPAcquirer) Acquire(ctx context.Context) (string, error) {
	var resp tokenResponse
	err := a.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    a.url,
		Body:   a.body,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("empty token in response")
	}
	return resp.Token, nil
}
