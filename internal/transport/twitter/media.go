package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/michimani/gotwi/media/upload"
	uploadtypes "github.com/michimani/gotwi/media/upload/types"
	"github.com/michimani/gotwi/resources"

	"github.com/blacktop/xpub/internal/logutil"
)

const metadataEndpoint = "https://upload.twitter.com/1.1/media/metadata/create.json"

type mediaKind struct {
	mediaType uploadtypes.MediaType
	category  uploadtypes.MediaCategory
}

var (
	jpegKind = mediaKind{uploadtypes.MediaTypeJPEG, uploadtypes.MediaCategoryTweetImage}
	pngKind  = mediaKind{uploadtypes.MediaTypePNG, uploadtypes.MediaCategoryTweetImage}
	gifKind  = mediaKind{uploadtypes.MediaTypeGIF, uploadtypes.MediaCategoryTweetGIF}
	webpKind = mediaKind{uploadtypes.MediaTypeWebP, uploadtypes.MediaCategoryTweetImage}

	kindsByExt = map[string]mediaKind{
		".jpg":  jpegKind,
		".jpeg": jpegKind,
		".png":  pngKind,
		".gif":  gifKind,
		".webp": webpKind,
	}
	kindsBySniff = map[string]mediaKind{
		"image/jpeg": jpegKind,
		"image/png":  pngKind,
		"image/gif":  gifKind,
		"image/webp": webpKind,
	}
)

// resolveMediaType picks the upload type from the extension, falling back to
// content sniffing.
func resolveMediaType(path string, data []byte) (uploadtypes.MediaType, uploadtypes.MediaCategory, error) {
	if k, ok := kindsByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return k.mediaType, k.category, nil
	}
	if k, ok := kindsBySniff[http.DetectContentType(data)]; ok {
		return k.mediaType, k.category, nil
	}
	return "", "", fmt.Errorf("unsupported image type for %q", path)
}

// uploadStep is one call of the chunked upload; it returns the partial
// errors the endpoint reported alongside a 2xx response.
type uploadStep struct {
	name string
	run  func() ([]resources.PartialError, error)
}

// uploadMedia sends a single image in one segment and returns its media id
// once X is done processing it.
func (c *Client) uploadMedia(ctx context.Context, path, altText string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("image %q not found", path)
	} else if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mediaType, category, err := resolveMediaType(path, data)
	if err != nil {
		return "", err
	}

	var (
		mediaID string
		info    resources.ProcessingInfo
	)
	steps := []uploadStep{
		{"initialize", func() ([]resources.PartialError, error) {
			out, err := upload.Initialize(ctx, c.api, &uploadtypes.InitializeInput{
				MediaType:     mediaType,
				TotalBytes:    len(data),
				MediaCategory: category,
			})
			if err != nil {
				return nil, err
			}
			mediaID = out.Data.MediaID
			return out.Errors, nil
		}},
		{"append", func() ([]resources.PartialError, error) {
			in := &uploadtypes.AppendInput{MediaID: mediaID, Media: bytes.NewReader(data)}
			in.GenerateBoundary()
			out, err := upload.Append(ctx, c.api, in)
			if err != nil {
				return nil, err
			}
			return out.Errors, nil
		}},
		{"finalize", func() ([]resources.PartialError, error) {
			out, err := upload.Finalize(ctx, c.api, &uploadtypes.FinalizeInput{MediaID: mediaID})
			if err != nil {
				return nil, err
			}
			info = out.Data.ProcessingInfo
			return out.Errors, nil
		}},
	}
	for _, step := range steps {
		partials, err := step.run()
		if err != nil {
			return "", fmt.Errorf("%s upload: %w", step.name, err)
		}
		if err := partialError(step.name, partials); err != nil {
			return "", err
		}
		logutil.Debugf("upload %s: media_id=%s bytes=%d", step.name, mediaID, len(data))
	}

	delay, err := processingDelay(info)
	if err != nil {
		return "", err
	}
	if delay > 0 {
		if err := sleepCtx(ctx, delay); err != nil {
			return "", err
		}
	}

	if alt := strings.TrimSpace(altText); alt != "" {
		if err := c.setAltText(ctx, mediaID, alt); err != nil {
			return "", err
		}
	}
	return mediaID, nil
}

// processingDelay reports how long to hold a finalized media id before it
// can be attached. Images settle within the advertised delay, so there is
// no status polling.
func processingDelay(info resources.ProcessingInfo) (time.Duration, error) {
	switch info.State {
	case "", resources.ProcessingInfoStateSucceeded:
		return 0, nil
	case resources.ProcessingInfoStateInProgress, resources.ProcessingInfoStatePending:
		return time.Duration(info.CheckAfterSecs) * time.Second, nil
	default:
		return 0, fmt.Errorf("media processing failed: state=%s", info.State)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func partialError(step string, partials []resources.PartialError) error {
	if len(partials) == 0 {
		return nil
	}
	var msgs []string
	for _, pe := range partials {
		if msg := firstOf(pe.Detail, pe.Title); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		msgs = []string{"unknown error"}
	}
	return fmt.Errorf("%s upload: %s", step, strings.Join(msgs, "; "))
}

func firstOf(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func (c *Client) setAltText(ctx context.Context, mediaID, altText string) error {
	ctx = context.WithValue(ctx, "Content-Type", "application/json;charset=UTF-8")
	params := &altTextParams{MediaID: mediaID}
	params.AltText.Text = altText

	if err := c.api.CallAPI(ctx, metadataEndpoint, http.MethodPost, params, &altTextResponse{}); err != nil {
		return fmt.Errorf("set alt text: %w", unwrapGotwiError(err))
	}
	logutil.Debugf("alt text set: media_id=%s", mediaID)
	return nil
}

// altTextParams is the media/metadata/create payload, shaped for gotwi's
// IParameters.
type altTextParams struct {
	MediaID string `json:"media_id"`
	AltText struct {
		Text string `json:"text"`
	} `json:"alt_text"`

	accessToken string
}

func (p *altTextParams) SetAccessToken(token string)        { p.accessToken = token }
func (p *altTextParams) AccessToken() string                { return p.accessToken }
func (p *altTextParams) ResolveEndpoint(base string) string { return base }
func (p *altTextParams) ParameterMap() map[string]string    { return map[string]string{} }

func (p *altTextParams) Body() (io.Reader, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(buf), nil
}

type altTextResponse struct{}

func (altTextResponse) HasPartialError() bool { return false }
