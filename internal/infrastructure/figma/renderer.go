package figma

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ncastellanos/figma-qa/internal/core/domain"
)

type imagesResponse struct {
	Err    string            `json:"err,omitempty"`
	Images map[string]string `json:"images"`
}

// RenderImages asks the export endpoint for ephemeral image URLs in batches.
// The result is best effort: a failed batch is logged and skipped, and node
// ids the API could not rasterize are simply absent from the map. Credential
// rejections and context cancellation abort the whole call.
func (c *Client) RenderImages(ctx context.Context, token, fileKey string, nodeIDs []string, scale float64) (map[string]string, error) {
	if len(nodeIDs) == 0 {
		return map[string]string{}, nil
	}
	if scale < 1 {
		scale = 1
	}
	if scale > 4 {
		scale = 4
	}

	result := make(map[string]string, len(nodeIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.renderConcurrency)

	for _, batch := range chunked(nodeIDs, c.imagesPerCall) {
		g.Go(func() error {
			params := url.Values{
				"ids":    {strings.Join(batch, ",")},
				"format": {"jpg"},
				"scale":  {strconv.FormatFloat(scale, 'f', -1, 64)},
			}
			var resp imagesResponse
			err := c.getJSON(gctx, token, "/images/"+fileKey, params, &resp, "render_images")
			if err != nil {
				mapped := mapFigmaError("figma.RenderImages", err)
				if domain.IsKind(mapped, domain.ErrAuth) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return mapped
				}
				slog.Warn("figma_render_batch_failed", "file_key", fileKey, "batch_size", len(batch), "error", err)
				return nil
			}
			if resp.Err != "" {
				slog.Warn("figma_render_batch_rejected", "file_key", fileKey, "error", resp.Err)
				return nil
			}

			mu.Lock()
			for id, imageURL := range resp.Images {
				if imageURL != "" {
					result[id] = imageURL
				}
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("figma_images_rendered", "file_key", fileKey, "requested", len(nodeIDs), "resolved", len(result))
	return result, nil
}
