// Package flower holds the catalog record returned by search.
package flower

// Item is a single flower record returned by the catalog search.
// All fields are optional; the catalog does not guarantee an identifier.
type Item struct {
	CommonName    string `json:"common_name,omitempty"`
	BotanicalName string `json:"botanical_name,omitempty"`
	Family        string `json:"family,omitempty"`
	Description   string `json:"description,omitempty"`
	Image1URL     string `json:"image1_url,omitempty"`
	Image2URL     string `json:"image2_url,omitempty"`
	Image3URL     string `json:"image3_url,omitempty"`
	Image4URL     string `json:"image4_url,omitempty"`
	URL           string `json:"url,omitempty"`
}

// Key is the display key built from the name fields.
// Two items with identical names share a key.
func (i Item) Key() string {
	return i.CommonName + i.BotanicalName
}

// Images returns the non-empty image URLs in slot order.
func (i Item) Images() []string {
	slots := [4]string{i.Image1URL, i.Image2URL, i.Image3URL, i.Image4URL}
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Thumbnail returns the first non-empty image URL, or "" when the item has none.
func (i Item) Thumbnail() string {
	if imgs := i.Images(); len(imgs) > 0 {
		return imgs[0]
	}
	return ""
}
