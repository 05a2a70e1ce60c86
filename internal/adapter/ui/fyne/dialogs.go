package fyne

import (
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// FileDialog is a helper for creating file open dialogs.
type FileDialog struct {
	window   fyne.Window
	callback func(string)
	logger   *slog.Logger
}

// NewFileDialog creates a new file dialog.
func NewFileDialog(window fyne.Window, callback func(string), logger *slog.Logger) *FileDialog {
	return &FileDialog{
		window:   window,
		callback: callback,
		logger:   logger,
	}
}

// Show displays the file dialog.
func (d *FileDialog) Show() {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			d.logger.Error("file dialog error", slog.Any("error", err))
			return
		}
		if reader == nil {
			return // User cancelled
		}
		defer func() { _ = reader.Close() }()

		// Get file path
		filePath := reader.URI().Path()
		if d.callback != nil {
			d.callback(filePath)
		}
	}, d.window)
}

// ShowStreamDialog prompts for a stream URL.
func ShowStreamDialog(window fyne.Window, callback func(string)) {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("http://example.com/stream")

	dialog.ShowForm("Open Stream", "Open", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("URL", entry)},
		func(confirmed bool) {
			if !confirmed || entry.Text == "" {
				return
			}
			if callback != nil {
				callback(entry.Text)
			}
		}, window)
}
