package tuya

import (
	"context"
	"net/http"
	"time"

	"github.com/relabs-tech/sensorhub/core/logger"
)

// tokenExpiryMargin guards against using a token that expires while a
// dependent call is in flight.
const tokenExpiryMargin = 60 * time.Second

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// accessToken returns a valid access token, fetching a new one if necessary.
//
// The mutex is held across the fetch on purpose: concurrent callers that
// arrive while a refresh is in flight block here and observe the refreshed
// token, instead of issuing duplicate fetches for the same expiry window.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()

	now := c.now()
	if c.token != nil && c.token.expiresAt.After(now.Add(tokenExpiryMargin)) {
		return c.token.accessToken, nil
	}

	logger.FromContext(ctx).Infoln("fetching new access token")
	result, err := doRequest[TokenResult](ctx, c, http.MethodGet, "/v1.0/token?grant_type=1", nil, "", "token", "")
	if err != nil {
		// no token installed, the next caller retries from scratch
		return "", err
	}

	c.token = &cachedToken{
		accessToken: result.AccessToken,
		expiresAt:   now.Add(time.Duration(result.ExpireTime) * time.Second),
	}
	return c.token.accessToken, nil
}
