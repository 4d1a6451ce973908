package osu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// tokenRequestBody sends the client id as a number when it is numeric.
func tokenRequestBody(clientID, clientSecret string) map[string]any {
	var id any = clientID
	if _, err := strconv.ParseInt(clientID, 10, 64); err == nil {
		id = json.Number(clientID)
	}
	return map[string]any{
		"client_id":     id,
		"client_secret": clientSecret,
		"grant_type":    "client_credentials",
		"scope":         "public",
	}
}

// Token exchanges the client credentials for a bearer token, it makes
// exactly one attempt.
func (c *Client) Token(ctx context.Context) (string, error) {
	var out tokenResponse
	res, err := c.api.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(tokenRequestBody(c.options.ClientID, c.options.ClientSecret)).
		SetResult(&out).
		Post(c.options.TokenURL)
	if err != nil {
		c.tel.ReportBroken(report_client_token, err)
		return "", err
	}
	if res.IsError() {
		return "", fmt.Errorf(
			"token endpoint returned status %d: %s",
			res.StatusCode(),
			strings.TrimSpace(string(res.Body())),
		)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}
	return out.AccessToken, nil
}
