package mastodon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	mastodonapi "github.com/mattn/go-mastodon"

	"github.com/blacktop/xpub/internal/logutil"
	"github.com/blacktop/xpub/internal/transport"
	"github.com/blacktop/xpub/internal/xpub"
)

const (
	envServer       = "XPUB_MASTODON_SERVER"
	envAccessToken  = "XPUB_MASTODON_ACCESS_TOKEN"
	envClientID     = "XPUB_MASTODON_CLIENT_ID"
	envClientSecret = "XPUB_MASTODON_CLIENT_SECRET"

	providerName   = "mastodon"
	requestTimeout = 30 * time.Second
	maxChars       = 500
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server       string
	AccessToken  string
	ClientID     string
	ClientSecret string
}

// Client wraps the Mastodon API client as an xpub.Transport.
type Client struct {
	client *mastodonapi.Client
}

// New constructs a Mastodon transport based on environment configuration.
func New(ctx context.Context) (xpub.Transport, error) {
	cfg, err := loadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	mastodonClient := mastodonapi.NewClient(&mastodonapi.Config{
		Server:       cfg.Server,
		AccessToken:  cfg.AccessToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
	mastodonClient.Timeout = requestTimeout

	return &Client{client: mastodonClient}, nil
}

// Name identifies the transport.
func (c *Client) Name() string { return providerName }

// Deliver posts c as a status, attaching the first local image.
func (c *Client) Deliver(ctx context.Context, p xpub.Platform, content *xpub.Content) (xpub.Receipt, error) {
	toot := &mastodonapi.Toot{
		Status:     xpub.RenderStatus(content, maxChars),
		Visibility: "public",
	}
	if imagePath := transport.FirstLocalFile(content.Media); imagePath != "" {
		attachment, err := c.uploadMedia(ctx, imagePath, content.Title)
		if err != nil {
			return xpub.Receipt{}, err
		}
		toot.MediaIDs = append(toot.MediaIDs, attachment.ID)
	}

	logutil.Debugf("posting status: platform=%s media_count=%d", p, len(toot.MediaIDs))
	status, err := c.client.PostStatus(ctx, toot)
	if err != nil {
		return xpub.Receipt{}, fmt.Errorf("post status: %w", err)
	}

	return xpub.Receipt{
		PostID: string(status.ID),
		URL:    status.URL,
		Extra:  map[string]string{"network": providerName},
	}, nil
}

func (c *Client) uploadMedia(ctx context.Context, path, alt string) (*mastodonapi.Attachment, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("image %q not found", path)
		}
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	attachment, err := c.client.UploadMediaFromMedia(ctx, &mastodonapi.Media{
		File:        file,
		Description: alt,
	})
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	return attachment, nil
}

func loadConfigFromEnv() (Config, error) {
	cfg := Config{
		Server:       strings.TrimSpace(os.Getenv(envServer)),
		AccessToken:  strings.TrimSpace(os.Getenv(envAccessToken)),
		ClientID:     strings.TrimSpace(os.Getenv(envClientID)),
		ClientSecret: strings.TrimSpace(os.Getenv(envClientSecret)),
	}

	var missing []string
	if cfg.Server == "" {
		missing = append(missing, envServer)
	}
	if cfg.AccessToken == "" {
		missing = append(missing, envAccessToken)
	}
	if len(missing) > 0 {
		return Config{}, xpub.MissingEnvError{Provider: providerName, Variables: missing}
	}
	return cfg, nil
}
