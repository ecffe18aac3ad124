package spotify

import (
	"context"
	"fmt"
)

// Artist fetches the full artist object, including genre tags.
func (c *Client) Artist(ctx context.Context, accessToken, artistID string) (*Artist, error) {
	var artist Artist
	reqURL := c.baseURL + "/artists/" + artistID
	if err := c.getJSON(ctx, reqURL, accessToken, &artist); err != nil {
		return nil, fmt.Errorf("fetching artist %s: %w", artistID, err)
	}
	return &artist, nil
}
