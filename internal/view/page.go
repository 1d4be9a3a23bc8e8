package view

import (
	"github.com/kailas-cloud/flora/internal/usecase/session"
)

// Form is the render model of the search form.
type Form struct {
	Text     string
	FileName string
	FileMode bool
	Error    string
}

// Page is the render model of the search page.
type Page struct {
	Form       Form
	Cards      []Card
	Loading    bool
	Error      string
	Searched   bool
	DetailOpen bool
	Detail     Detail
	PreviewURL string
}

// NewPage builds the page from a session snapshot.
func NewPage(st session.State) Page {
	return Page{
		Form: Form{
			Text:     st.Form.Text,
			FileName: st.Form.FileName,
			FileMode: st.Form.FileMode,
			Error:    st.Form.Error,
		},
		Cards:      NewCards(st.Items),
		Loading:    st.Loading,
		Error:      st.Error,
		Searched:   st.Searched,
		DetailOpen: st.DetailOpen,
		Detail:     NewDetail(st.Selected, st.PreviewURL),
		PreviewURL: st.PreviewURL,
	}
}
