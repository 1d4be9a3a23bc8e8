package view

import (
	"fmt"
	"html/template"

	"github.com/kailas-cloud/flora/internal/domain/flower"
)

// Image is a labelled picture in the detail view.
type Image struct {
	Label string
	Src   template.URL
}

// Detail is the render model of the selected item.
type Detail struct {
	Empty         bool
	CommonName    string
	BotanicalName string
	Family        string
	Description   string
	QueryImage    *Image
	Matches       []Image
	SourceURL     template.URL
}

// NewDetail builds the detail for the selected item and the held query
// image preview. A nil item renders the empty state.
func NewDetail(item *flower.Item, previewURL string) Detail {
	if item == nil {
		return Detail{Empty: true}
	}

	d := Detail{
		CommonName:    item.CommonName,
		BotanicalName: item.BotanicalName,
		Family:        item.Family,
		Description:   item.Description,
	}
	if src, ok := safeURL(previewURL); ok {
		d.QueryImage = &Image{Label: "Your image", Src: src}
	}
	for _, raw := range item.Images() {
		src, ok := safeURL(raw)
		if !ok {
			continue
		}
		d.Matches = append(d.Matches, Image{
			Label: fmt.Sprintf("Match %d", len(d.Matches)+1),
			Src:   src,
		})
	}
	if src, ok := safeURL(item.URL); ok {
		d.SourceURL = src
	}
	return d
}
