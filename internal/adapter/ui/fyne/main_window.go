package fyne

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"math"
	"net/url"
	"sync"

	fyneapp "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tunecast/tunecast/internal/ports"
)

// Window defaults
const (
	appName      = "TuneCast"
	windowWidth  = 520
	windowHeight = 380
)

// MainWindow is the main UI window implementing the UIView interface.
// It handles all UI rendering and user interactions.
//
// The MainWindow follows the MVP pattern:
// - It's a "dumb view" that just displays data
// - All business logic is in the Presenter
// - User interactions are forwarded to the Presenter
type MainWindow struct {
	app    fyneapp.App
	window fyneapp.Window
	logger *slog.Logger

	// UI components
	playButton     *widget.Button
	stopButton     *widget.Button
	muteButton     *widget.Button
	loopButton     *widget.Button
	songInfo       *widget.Label
	currentTime    *widget.Label
	endTime        *widget.Label
	progressSlider *widget.Slider
	volumeSlider   *widget.Slider
	albumArt       *canvas.Image

	// Purchase flow window
	purchaseWindow *PurchaseWindow

	// Lifecycle management
	closeOnce sync.Once

	// Presenter (set after construction)
	presenter *Presenter
}

// NewMainWindow creates a new main window.
func NewMainWindow(app fyneapp.App, logger *slog.Logger) *MainWindow {
	w := &MainWindow{
		app:    app,
		logger: logger,
	}

	// Create a window
	w.window = app.NewWindow(appName)

	// Build UI
	w.buildUI()

	// Set window properties
	w.window.Resize(fyneapp.Size{
		Width:  windowWidth,
		Height: windowHeight,
	})
	w.window.SetFixedSize(true)

	w.purchaseWindow = NewPurchaseWindow(app)

	return w
}

// SetPresenter connects the presenter to this view.
// This must be called before showing the window.
func (w *MainWindow) SetPresenter(presenter *Presenter) {
	w.presenter = presenter
	w.purchaseWindow.SetPresenter(presenter)
	w.wirePresenterHandlers()
	w.addShortcuts()
}

// buildUI constructs the UI components.
func (w *MainWindow) buildUI() {
	// Album art display
	w.albumArt = canvas.NewImageFromResource(theme.MediaMusicIcon())
	w.albumArt.FillMode = canvas.ImageFillContain

	// Control buttons
	w.playButton = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), nil)
	w.stopButton = widget.NewButtonWithIcon("", theme.MediaStopIcon(), nil)
	w.muteButton = widget.NewButtonWithIcon("", theme.VolumeUpIcon(), nil)
	w.loopButton = widget.NewButtonWithIcon("", theme.MediaReplayIcon(), nil)

	// Song info label
	w.songInfo = widget.NewLabel("")
	w.songInfo.Truncation = fyneapp.TextTruncateClip
	w.songInfo.TextStyle = fyneapp.TextStyle{
		Bold:   true,
		Italic: true,
	}

	// Volume slider
	w.volumeSlider = widget.NewSlider(0, 100)
	w.volumeSlider.Orientation = widget.Horizontal
	volIcon := canvas.NewImageFromResource(theme.VolumeUpIcon())
	volumeHolder := container.NewHBox(volIcon, w.volumeSlider)

	// Button container
	buttonsHBox := container.NewHBox(
		w.playButton, w.stopButton, w.muteButton, w.loopButton,
	)
	buttonsHolder := container.NewBorder(nil, nil, buttonsHBox, volumeHolder, w.songInfo)

	// Progress slider
	w.progressSlider = widget.NewSlider(0, 100)
	w.currentTime = widget.NewLabel("00:00")
	w.endTime = widget.NewLabel("00:00")
	sliderHolder := container.NewBorder(nil, nil, w.currentTime, w.endTime, w.progressSlider)

	// Main layout
	controls := container.NewVBox(buttonsHolder, sliderHolder)
	splitContainer := container.NewBorder(nil, controls, nil, nil, w.albumArt)
	w.window.SetContent(container.NewPadded(splitContainer))

	// Menu
	w.window.SetMainMenu(fyneapp.NewMainMenu(w.createMenu()...))
}

// wirePresenterHandlers connects UI events to presenter handlers.
func (w *MainWindow) wirePresenterHandlers() {
	if w.presenter == nil {
		return
	}

	// Button handlers
	w.playButton.OnTapped = func() {
		w.presenter.OnPlayClicked()
	}

	w.stopButton.OnTapped = func() {
		w.presenter.OnStopClicked()
	}

	w.muteButton.OnTapped = func() {
		w.presenter.OnMuteClicked()
	}

	w.loopButton.OnTapped = func() {
		w.presenter.OnLoopClicked()
	}

	// Volume slider
	w.volumeSlider.OnChanged = func(value float64) {
		w.presenter.OnVolumeChanged(value)
	}

	// Progress slider (seeking)
	w.progressSlider.OnChangeEnded = func(value float64) {
		w.presenter.OnSeekRequested(value)
	}
}

// createMenu creates the application menu.
func (w *MainWindow) createMenu() []*fyneapp.Menu {
	menus := make([]*fyneapp.Menu, 0)
	separator := fyneapp.NewMenuItemSeparator()

	openFile := fyneapp.NewMenuItem("Open", func() {
		w.handleOpenFile()
	})

	openStream := fyneapp.NewMenuItem("Open Stream", func() {
		w.handleOpenStream()
	})

	exitMenu := fyneapp.NewMenuItem("Exit", func() {
		w.window.Close()
	})

	fileMenuItems := fyneapp.NewMenu("File", openFile, openStream, separator, exitMenu)
	menus = append(menus, fileMenuItems)

	upgradeMenu := fyneapp.NewMenuItem("Upgrade to Pro", func() {
		w.purchaseWindow.Show()
	})

	storeMenuItems := fyneapp.NewMenu("Store", upgradeMenu)
	menus = append(menus, storeMenuItems)

	return menus
}

// handleOpenFile handles the "Open File" menu action.
func (w *MainWindow) handleOpenFile() {
	if w.presenter == nil {
		return
	}

	fileDialog := NewFileDialog(w.window, func(filePath string) {
		if err := w.presenter.OnFileOpened(filePath); err != nil {
			w.ShowNotification("Error", fmt.Sprintf("Failed to open file: %v", err))
		}
	}, w.logger)
	fileDialog.Show()
}

// handleOpenStream handles the "Open Stream" menu action.
func (w *MainWindow) handleOpenStream() {
	if w.presenter == nil {
		return
	}

	ShowStreamDialog(w.window, func(streamURL string) {
		w.presenter.OnStreamOpened(streamURL)
	})
}

// addShortcuts adds keyboard shortcuts.
func (w *MainWindow) addShortcuts() {
	w.window.Canvas().AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyneapp.KeyUp,
		Modifier: desktop.AltModifier,
	}, func(_ fyneapp.Shortcut) {
		// Volume up
		newVol := w.volumeSlider.Value + 5
		if newVol > 100 {
			newVol = 100
		}
		w.volumeSlider.SetValue(newVol)
	})

	w.window.Canvas().AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyneapp.KeyDown,
		Modifier: desktop.AltModifier,
	}, func(_ fyneapp.Shortcut) {
		// Volume down
		newVol := w.volumeSlider.Value - 5
		if newVol < 0 {
			newVol = 0
		}
		w.volumeSlider.SetValue(newVol)
	})
}

// ShowAndRun shows the window and runs the application.
func (w *MainWindow) ShowAndRun() {
	w.window.ShowAndRun()
}

// Close closes the window. It's safe to call multiple times (idempotent).
func (w *MainWindow) Close() {
	w.closeOnce.Do(func() {
		w.purchaseWindow.Close()
		w.window.Close()
	})
}

// GetWindow returns the underlying Fyne window.
func (w *MainWindow) GetWindow() fyneapp.Window {
	return w.window
}

// OpenCheckout opens the store checkout page in the system browser.
func (w *MainWindow) OpenCheckout(checkoutURL string) error {
	parsed, err := url.Parse(checkoutURL)
	if err != nil {
		return err
	}
	return w.app.OpenURL(parsed)
}

// UIView interface implementation

// SetPlayState updates the play/pause button state.
func (w *MainWindow) SetPlayState(playing bool) {
	if playing {
		w.playButton.SetIcon(theme.MediaPauseIcon())
	} else {
		w.playButton.SetIcon(theme.MediaPlayIcon())
	}
	w.playButton.Refresh()
}

// SetMuteState updates the mute button state.
func (w *MainWindow) SetMuteState(muted bool) {
	if muted {
		w.muteButton.SetIcon(theme.VolumeMuteIcon())
	} else {
		w.muteButton.SetIcon(theme.VolumeUpIcon())
	}
	w.muteButton.Refresh()
}

// SetLoopState updates the loop button state.
func (w *MainWindow) SetLoopState(enabled bool) {
	if enabled {
		w.loopButton.SetIcon(theme.ViewRefreshIcon())
	} else {
		w.loopButton.SetIcon(theme.MediaReplayIcon())
	}
	w.loopButton.Refresh()
}

// SetVolume updates the volume slider (0-100).
func (w *MainWindow) SetVolume(volume float64) {
	w.volumeSlider.Value = volume
	w.volumeSlider.Refresh()
}

// SetTrackInfo updates the displayed track information.
func (w *MainWindow) SetTrackInfo(title, artist, _ string) {
	// Format: "Artist - Title"
	var text string
	switch {
	case artist != "" && title != "":
		text = fmt.Sprintf("%s - %s", artist, title)
	case title != "":
		text = title
	default:
		text = "No track loaded"
	}

	w.songInfo.SetText(text)
}

// SetAlbumArt updates the album artwork.
func (w *MainWindow) SetAlbumArt(imageData []byte) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		// If decode fails, use default
		w.ClearAlbumArt()
		return
	}

	w.albumArt.Image = img
	w.albumArt.Refresh()
}

// ClearAlbumArt resets the album artwork to default.
func (w *MainWindow) ClearAlbumArt() {
	w.albumArt.Resource = theme.MediaMusicIcon()
	w.albumArt.Image = nil
	w.albumArt.Refresh()
}

// SetCurrentTime updates the current playback time display.
func (w *MainWindow) SetCurrentTime(seconds float64) {
	format := fmt.Sprintf("%.2d:%.2d", int(seconds/60), int(math.Mod(seconds, 60)))
	w.currentTime.SetText(format)
}

// SetTotalTime updates the total track duration display.
func (w *MainWindow) SetTotalTime(seconds float64) {
	format := fmt.Sprintf("%.2d:%.2d", int(seconds/60), int(math.Mod(seconds, 60)))
	w.progressSlider.Max = seconds
	w.endTime.SetText(format)
}

// SetProgress updates the progress slider position.
func (w *MainWindow) SetProgress(position, duration float64) {
	if duration > 0 {
		w.progressSlider.Value = position
		w.progressSlider.Refresh()
	}
}

// EnablePurchaseActions enables the purchase window buttons.
func (w *MainWindow) EnablePurchaseActions() {
	w.purchaseWindow.EnableActions()
}

// ShowPurchaseThanks displays the post-purchase confirmation.
func (w *MainWindow) ShowPurchaseThanks() {
	w.purchaseWindow.ShowThanks()
	w.ShowNotification(appName, "Thank you for upgrading to Pro!")
}

// ShowRestoreResult displays the outcome of a restore request.
func (w *MainWindow) ShowRestoreResult(owned bool) {
	w.purchaseWindow.ShowRestoreResult(owned)
}

// ShowNotification displays a system notification.
func (w *MainWindow) ShowNotification(title, message string) {
	w.app.SendNotification(fyneapp.NewNotification(title, message))
}

// Verify UIView and CheckoutHost implementation
var (
	_ UIView             = (*MainWindow)(nil)
	_ ports.CheckoutHost = (*MainWindow)(nil)
)
