package fyne

import (
	"sync"

	fyneapp "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// PurchaseWindow presents the Pro upgrade flow.
//
// Both action buttons are created disabled and flip to enabled only
// when the store connection reports ready. The user sees the outcome of
// a restore directly; purchase outcomes arrive later via the purchase
// completed event.
type PurchaseWindow struct {
	app    fyneapp.App
	window fyneapp.Window

	buyButton     *widget.Button
	restoreButton *widget.Button
	statusLabel   *widget.Label

	openOnce  sync.Once
	closeOnce sync.Once

	// Presenter (set after construction)
	presenter *Presenter
}

// NewPurchaseWindow creates the purchase window. The window is built but
// not shown; call Show once the presenter is wired.
func NewPurchaseWindow(app fyneapp.App) *PurchaseWindow {
	w := &PurchaseWindow{
		app: app,
	}

	w.window = app.NewWindow("Upgrade to Pro")
	w.buildUI()

	w.window.Resize(fyneapp.Size{Width: 360, Height: 200})
	w.window.SetFixedSize(true)

	return w
}

// SetPresenter connects the presenter to this view.
func (w *PurchaseWindow) SetPresenter(presenter *Presenter) {
	w.presenter = presenter

	w.buyButton.OnTapped = func() {
		w.presenter.OnBuyProClicked()
	}
	w.restoreButton.OnTapped = func() {
		w.presenter.OnRestoreClicked()
	}
}

// buildUI constructs the UI components.
func (w *PurchaseWindow) buildUI() {
	heading := widget.NewLabelWithStyle("TuneCast Pro",
		fyneapp.TextAlignCenter, fyneapp.TextStyle{Bold: true})
	blurb := widget.NewLabel("Unlock casting and gapless playback.")
	blurb.Alignment = fyneapp.TextAlignCenter

	// Buttons stay disabled until the store connection is ready
	w.buyButton = widget.NewButtonWithIcon("Buy Pro", theme.ConfirmIcon(), nil)
	w.buyButton.Importance = widget.HighImportance
	w.buyButton.Disable()

	w.restoreButton = widget.NewButtonWithIcon("Restore Purchases", theme.ViewRefreshIcon(), nil)
	w.restoreButton.Disable()

	w.statusLabel = widget.NewLabel("Connecting to store…")
	w.statusLabel.Alignment = fyneapp.TextAlignCenter

	content := container.NewVBox(
		heading,
		blurb,
		w.buyButton,
		w.restoreButton,
		w.statusLabel,
	)
	w.window.SetContent(container.NewPadded(content))
}

// Show displays the window.
func (w *PurchaseWindow) Show() {
	w.window.Show()
}

// Close closes the window. It's safe to call multiple times.
func (w *PurchaseWindow) Close() {
	w.closeOnce.Do(func() {
		w.window.Close()
	})
}

// EnableActions enables both purchase buttons. Repeat calls are no-ops;
// once enabled the buttons never flip back, even across reconnects.
func (w *PurchaseWindow) EnableActions() {
	w.openOnce.Do(func() {
		fyneapp.Do(func() {
			w.buyButton.Enable()
			w.restoreButton.Enable()
			w.statusLabel.SetText("")
		})
	})
}

// ShowThanks displays the post-purchase confirmation.
func (w *PurchaseWindow) ShowThanks() {
	fyneapp.Do(func() {
		w.statusLabel.SetText("Thank you for upgrading to Pro!")
	})
}

// ShowRestoreResult displays the outcome of a restore request.
func (w *PurchaseWindow) ShowRestoreResult(owned bool) {
	fyneapp.Do(func() {
		if owned {
			w.statusLabel.SetText("Purchases restored. Please restart TuneCast.")
		} else {
			w.statusLabel.SetText("No previous purchase found.")
		}
	})
}
