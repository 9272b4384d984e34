package bluesky

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/blacktop/xpub/internal/logutil"
	"github.com/blacktop/xpub/internal/transport"
	"github.com/blacktop/xpub/internal/xpub"
)

const (
	envHandle      = "XPUB_BLUESKY_HANDLE"
	envAppPassword = "XPUB_BLUESKY_APP_PASSWORD"
	envPDSURL      = "XPUB_BLUESKY_PDS_URL"

	providerName   = "bluesky"
	requestTimeout = 30 * time.Second
	maxChars       = 300
	defaultPDSURL  = "https://bsky.social"
	postCollection = "app.bsky.feed.post"
)

// Config allows the caller to supply defaults prior to reading environment variables.
type Config struct {
	PDSURL string
}

// Client implements xpub.Transport for Bluesky.
type Client struct {
	client *xrpc.Client
}

// New logs in with an app password and returns a Bluesky transport.
func New(ctx context.Context, base Config) (xpub.Transport, error) {
	cfg, err := loadConfig(base)
	if err != nil {
		return nil, err
	}

	userAgent := "xpub/1"
	xrpcClient := &xrpc.Client{
		Client:    &http.Client{Timeout: requestTimeout},
		Host:      cfg.PDSURL,
		UserAgent: &userAgent,
	}

	session, err := atproto.ServerCreateSession(ctx, xrpcClient, &atproto.ServerCreateSession_Input{
		Identifier: cfg.Handle,
		Password:   cfg.AppPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	xrpcClient.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	return &Client{client: xrpcClient}, nil
}

// Name identifies the transport.
func (c *Client) Name() string { return providerName }

// Deliver creates a feed post, embedding the first local image.
func (c *Client) Deliver(ctx context.Context, p xpub.Platform, content *xpub.Content) (xpub.Receipt, error) {
	post := &bsky.FeedPost{
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Text:      xpub.RenderStatus(content, maxChars),
	}

	if imagePath := transport.FirstLocalFile(content.Media); imagePath != "" {
		blob, err := c.uploadImage(ctx, imagePath)
		if err != nil {
			return xpub.Receipt{}, err
		}
		post.Embed = &bsky.FeedPost_Embed{
			EmbedImages: &bsky.EmbedImages{
				Images: []*bsky.EmbedImages_Image{{Alt: content.Title, Image: blob}},
			},
		}
	}

	logutil.Debugf("creating post record: platform=%s", p)
	out, err := atproto.RepoCreateRecord(ctx, c.client, &atproto.RepoCreateRecord_Input{
		Collection: postCollection,
		Repo:       c.client.Auth.Did,
		Record:     &util.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return xpub.Receipt{}, fmt.Errorf("create record: %w", err)
	}

	return xpub.Receipt{
		PostID: out.Uri,
		URL:    postURL(c.client.Auth.Handle, out.Uri),
		Extra:  map[string]string{"network": providerName, "cid": out.Cid},
	}, nil
}

// postURL maps an at:// record URI to its bsky.app web link.
func postURL(handle, uri string) string {
	i := strings.LastIndex(uri, "/")
	if handle == "" || i < 0 || i == len(uri)-1 {
		return ""
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, uri[i+1:])
}

func (c *Client) uploadImage(ctx context.Context, path string) (*util.LexBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("image %q not found", path)
		}
		return nil, fmt.Errorf("read image: %w", err)
	}

	resp, err := atproto.RepoUploadBlob(ctx, c.client, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	if resp.Blob == nil {
		return nil, errors.New("upload blob: empty response")
	}
	return resp.Blob, nil
}

// ProviderConfig merges defaults with environment-defined values.
type ProviderConfig struct {
	Handle      string
	AppPassword string
	PDSURL      string
}

func loadConfig(base Config) (ProviderConfig, error) {
	cfg := ProviderConfig{
		Handle:      strings.TrimSpace(os.Getenv(envHandle)),
		AppPassword: strings.TrimSpace(os.Getenv(envAppPassword)),
		PDSURL:      strings.TrimSpace(os.Getenv(envPDSURL)),
	}
	if cfg.PDSURL == "" {
		cfg.PDSURL = strings.TrimSpace(base.PDSURL)
	}
	if cfg.PDSURL == "" {
		cfg.PDSURL = defaultPDSURL
	}

	var missing []string
	if cfg.Handle == "" {
		missing = append(missing, envHandle)
	}
	if cfg.AppPassword == "" {
		missing = append(missing, envAppPassword)
	}
	if len(missing) > 0 {
		return ProviderConfig{}, xpub.MissingEnvError{Provider: providerName, Variables: missing}
	}
	return cfg, nil
}
