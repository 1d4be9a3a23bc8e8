// Package view builds render models for the search page and renders them
// with embedded templates.
package view

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/kailas-cloud/flora/internal/domain/flower"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="300" viewBox="0 0 400 300">` +
	`<rect width="400" height="300" fill="#e9ecef"/>` +
	`<text x="50%" y="50%" dominant-baseline="middle" text-anchor="middle" ` +
	`font-family="sans-serif" font-size="24" fill="#6c757d">No Image</text></svg>`

// PlaceholderImage is shown for items without any image.
var PlaceholderImage = template.URL("data:image/svg+xml;charset=UTF-8," + url.PathEscape(placeholderSVG)) //nolint:gosec // constant

const (
	untitled   = "Unknown"
	defaultAlt = "Flower"
)

// Card is one result tile.
type Card struct {
	Index     int
	Title     string
	Alt       string
	Thumbnail template.URL
}

// NewCard builds the tile for the item at index.
func NewCard(index int, item flower.Item) Card {
	c := Card{
		Index:     index,
		Title:     untitled,
		Alt:       defaultAlt,
		Thumbnail: PlaceholderImage,
	}
	if item.CommonName != "" {
		c.Title = item.CommonName
		c.Alt = item.CommonName
	}
	if u, ok := safeURL(item.Thumbnail()); ok {
		c.Thumbnail = u
	}
	return c
}

// NewCards builds tiles in result order. Items are addressed by position,
// so items with the same names still get their own tile.
func NewCards(items []flower.Item) []Card {
	cards := make([]Card, 0, len(items))
	for i, item := range items {
		cards = append(cards, NewCard(i, item))
	}
	return cards
}

// safeURL accepts absolute http(s) URLs and relative paths.
func safeURL(raw string) (template.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return "", false
		}
	case "":
		if u.Opaque != "" {
			return "", false
		}
	default:
		return "", false
	}
	return template.URL(raw), true //nolint:gosec // scheme checked above
}
