// Package avatar fetches user profile photos through the Telegram Bot API
// and re-encodes them as small base64 data URIs for the export table.
package avatar

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"time"

	_ "image/gif" //revive:disable:blank-imports
	_ "image/png" //revive:disable:blank-imports

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/image/draw"
)

// Avatar cells hold a 50x50 thumbnail, matching the list UI tile size.
const thumbnailSize = 50

// Payload is the terminal result of one avatar fetch. DataURI is empty
// when the user has no profile photo or the fetch failed.
type Payload struct {
	UserID  int64
	DataURI string
}

// Fetcher yields exactly one Payload per user per export.
type Fetcher interface {
	Fetch(ctx context.Context, userID int64) (Payload, error)
}

// telegramFetcher downloads profile photos via the Bot API file endpoints.
type telegramFetcher struct {
	bot        *tgbot.Bot
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTelegramFetcher creates a Fetcher backed by the Telegram Bot API.
func NewTelegramFetcher(b *tgbot.Bot, logger *slog.Logger) Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &telegramFetcher{
		bot:        b,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "avatar_fetcher"),
	}
}

// Fetch resolves the user's current profile photo, scales it to a 50x50
// JPEG, and returns it as a data URI. A user without a photo yields an
// empty DataURI and no error; only transport and decode failures error.
func (f *telegramFetcher) Fetch(ctx context.Context, userID int64) (Payload, error) {
	payload := Payload{UserID: userID}

	photos, err := f.bot.GetUserProfilePhotos(ctx, &tgbot.GetUserProfilePhotosParams{
		UserID: userID,
		Limit:  1,
	})
	if err != nil {
		return payload, fmt.Errorf("failed to get profile photos for user %d: %w", userID, err)
	}
	if photos == nil || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		f.logger.DebugContext(ctx, "User has no profile photo", "user_id", userID)
		return payload, nil
	}

	// The first size variant is the smallest; it is already close to the
	// thumbnail size we need.
	fileID := photos.Photos[0][0].FileID
	file, err := f.bot.GetFile(ctx, &tgbot.GetFileParams{FileID: fileID})
	if err != nil {
		return payload, fmt.Errorf("failed to resolve photo file for user %d: %w", userID, err)
	}

	raw, err := f.download(ctx, f.bot.FileDownloadLink(file))
	if err != nil {
		return payload, fmt.Errorf("failed to download photo for user %d: %w", userID, err)
	}

	dataURI, err := encodeThumbnail(raw)
	if err != nil {
		return payload, fmt.Errorf("failed to encode photo for user %d: %w", userID, err)
	}

	payload.DataURI = dataURI
	return payload, nil
}

func (f *telegramFetcher) download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photo download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo download returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// encodeThumbnail decodes an image, scales it to thumbnailSize square, and
// re-encodes it as a base64 JPEG data URI.
func encodeThumbnail(raw []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, thumbnailSize, thumbnailSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, nil); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return "data:image/jpg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
