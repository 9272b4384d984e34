package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/michimani/gotwi"
	"github.com/michimani/gotwi/tweet/managetweet"
	managetweettypes "github.com/michimani/gotwi/tweet/managetweet/types"

	"github.com/blacktop/xpub/internal/logutil"
	"github.com/blacktop/xpub/internal/transport"
	"github.com/blacktop/xpub/internal/xpub"
)

const (
	envAPIKey       = "XPUB_TWITTER_CONSUMER_KEY"
	envAPISecret    = "XPUB_TWITTER_CONSUMER_SECRET"
	envAccessToken  = "XPUB_TWITTER_ACCESS_TOKEN"
	envAccessSecret = "XPUB_TWITTER_ACCESS_TOKEN_SECRET"
	envDebug        = "XPUB_TWITTER_DEBUG"

	providerName = "twitter"
	maxChars     = 280
	statusURL    = "https://x.com/i/web/status/"
)

var httpTimeout = 30 * time.Second

// Config captures the credentials required for OAuth 1.0a user-context requests.
type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// credentials lists the required variables in the order they are reported.
var credentials = []struct {
	env   string
	field func(*Config) *string
}{
	{envAPIKey, func(c *Config) *string { return &c.APIKey }},
	{envAPISecret, func(c *Config) *string { return &c.APISecret }},
	{envAccessToken, func(c *Config) *string { return &c.AccessToken }},
	{envAccessSecret, func(c *Config) *string { return &c.AccessSecret }},
}

func loadConfigFromEnv() (Config, error) {
	var (
		cfg     Config
		missing []string
	)
	for _, cred := range credentials {
		v := strings.TrimSpace(os.Getenv(cred.env))
		if v == "" {
			missing = append(missing, cred.env)
			continue
		}
		*cred.field(&cfg) = v
	}
	if len(missing) > 0 {
		return Config{}, xpub.MissingEnvError{Provider: providerName, Variables: missing}
	}
	return cfg, nil
}

// clientInput signs every request as the account that owns the access token.
func (cfg Config) clientInput() *gotwi.NewClientInput {
	return &gotwi.NewClientInput{
		HTTPClient:           &http.Client{Timeout: httpTimeout},
		AuthenticationMethod: gotwi.AuthenMethodOAuth1UserContext,
		APIKey:               cfg.APIKey,
		APIKeySecret:         cfg.APISecret,
		OAuthToken:           cfg.AccessToken,
		OAuthTokenSecret:     cfg.AccessSecret,
		Debug:                traceRequests(),
	}
}

func traceRequests() bool {
	on, _ := strconv.ParseBool(os.Getenv(envDebug))
	return on || logutil.Verbose()
}

// Client implements xpub.Transport for X (Twitter).
type Client struct {
	api *gotwi.Client
}

// New reads credentials from the environment and returns an X transport.
func New(ctx context.Context) (xpub.Transport, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	api, err := gotwi.NewClient(cfg.clientInput())
	if err != nil {
		return nil, fmt.Errorf("create X client: %w", err)
	}
	if !api.IsReady() {
		return nil, errors.New("twitter client not ready")
	}
	return &Client{api: api}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return providerName }

// Deliver posts content as a single tweet, attaching the first local image.
func (c *Client) Deliver(ctx context.Context, p xpub.Platform, content *xpub.Content) (xpub.Receipt, error) {
	tweet := &managetweettypes.CreateInput{
		Text: gotwi.String(xpub.RenderStatus(content, maxChars)),
	}
	if path := transport.FirstLocalFile(content.Media); path != "" {
		mediaID, err := c.uploadMedia(ctx, path, content.Title)
		if err != nil {
			return xpub.Receipt{}, err
		}
		tweet.Media = &managetweettypes.CreateInputMedia{MediaIDs: []string{mediaID}}
	}

	logutil.Debugf("posting tweet: platform=%s with_media=%t", p, tweet.Media != nil)
	res, err := managetweet.Create(ctx, c.api, tweet)
	if err != nil {
		return xpub.Receipt{}, fmt.Errorf("post tweet: %w", unwrapGotwiError(err))
	}
	return receipt(gotwi.StringValue(res.Data.ID)), nil
}

func receipt(id string) xpub.Receipt {
	rc := xpub.Receipt{PostID: id, Extra: map[string]string{"network": providerName}}
	if id != "" {
		rc.URL = statusURL + id
	}
	return rc
}

// unwrapGotwiError flattens the X API error payload into one message.
func unwrapGotwiError(err error) error {
	var gwErr *gotwi.GotwiError
	if !errors.As(err, &gwErr) || gwErr == nil {
		return err
	}

	parts := nonEmpty(gwErr.Title, gwErr.Detail)
	for _, apiErr := range gwErr.APIErrors {
		parts = append(parts, nonEmpty(apiErr.Message)...)
	}
	if len(parts) == 0 {
		return err
	}
	return errors.New(strings.Join(parts, "; "))
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
