package redis

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/crypto-comrades/social-api/api"
)

// Posts are nested documents (author, tags, comment list), so they
// are stored as JSON values rather than flat hashes.

func postKey(id string) string {
	return fmt.Sprintf("%s:%s", postPrefix, id)
}

func priceKey(coinID string) string {
	return fmt.Sprintf("%s:%s", pricePrefix, coinID)
}

func marshalPost(p api.Post) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}
	return string(raw), nil
}

func unmarshalPost(raw string) (api.Post, error) {
	var p api.Post
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return api.Post{}, fmt.Errorf("unmarshal post: %w", err)
	}
	return p, nil
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

func parsePrice(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
