package session

import "github.com/kailas-cloud/flora/internal/domain/upload"

// Form is the search form state: either text mode or file mode.
type Form struct {
	text     string
	fileName string
	hasFile  bool
	err      string
}

// FormState is a read-only copy of Form for rendering.
type FormState struct {
	Text     string
	FileName string
	FileMode bool
	Error    string
}

// submitText records the text. It reports false when the form is in file mode,
// where text submissions are ignored.
func (f *Form) submitText(text string) bool {
	if f.hasFile {
		return false
	}
	f.text = text
	return true
}

// selectFile validates the file. On rejection the local error is set and the
// previous selection is kept.
func (f *Form) selectFile(v *upload.Validator, file *upload.File) error {
	if err := v.ValidateFile(file); err != nil {
		f.err = err.Error()
		return err
	}
	f.err = ""
	f.fileName = file.Name
	f.hasFile = true
	return nil
}

func (f *Form) reset() {
	*f = Form{}
}

func (f *Form) state() FormState {
	return FormState{
		Text:     f.text,
		FileName: f.fileName,
		FileMode: f.hasFile,
		Error:    f.err,
	}
}
