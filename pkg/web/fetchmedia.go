package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const maxMediaSize = 10 * 1024 * 1024

var client = resty.New().
	SetTimeout(20*time.Second).
	SetHeader("User-Agent", "dashboard-fetchMedia").
	SetResponseBodyLimit(maxMediaSize)

// ErrMediaTooLarge is returned for bodies over the media size limit.
var ErrMediaTooLarge = fmt.Errorf("media larger than %d bytes", maxMediaSize)

// FetchMedia downloads a remote media file such as a profile picture.
func FetchMedia(ctx context.Context, mediaURI string) ([]byte, error) {
	resp, err := client.R().SetContext(ctx).Get(mediaURI)
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return nil, ErrMediaTooLarge
	}
	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch media: %s, %s", resp.Status(), resp.String())
	}

	return resp.Body(), nil
}
