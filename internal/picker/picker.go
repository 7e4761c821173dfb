package picker

import (
	"errors"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
)

var ErrNoSelection = errors.New("no image selected")

// ImageExtensions are the file types offered by the chooser.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// Resolver yields the path of the image to classify.
type Resolver interface {
	Resolve() (string, error)
}

// ArgResolver takes the path from the command line.
type ArgResolver struct {
	Args []string
}

func (r ArgResolver) Resolve() (string, error) {
	switch len(r.Args) {
	case 0:
		return "", ErrNoSelection
	case 1:
		if r.Args[0] == "" {
			return "", ErrNoSelection
		}
		return r.Args[0], nil
	default:
		return "", fmt.Errorf("expected one image path, got %d arguments", len(r.Args))
	}
}

// DialogResolver opens a desktop file chooser and blocks until the user
// picks a file or closes the window.
type DialogResolver struct {
	Title      string
	Extensions []string
}

func (d DialogResolver) Resolve() (string, error) {
	a := app.New()
	w := a.NewWindow(d.Title)
	w.Resize(fyne.NewSize(800, 600))
	w.SetMaster()

	var (
		path string
		err  error
	)
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, openErr error) {
		defer a.Quit()
		if openErr != nil {
			err = openErr
			return
		}
		if rc == nil {
			return
		}
		path = rc.URI().Path()
		rc.Close()
	}, w)
	if len(d.Extensions) > 0 {
		fd.SetFilter(storage.NewExtensionFileFilter(d.Extensions))
	}

	w.Show()
	fd.Show()
	a.Run()

	if err != nil {
		return "", fmt.Errorf("file chooser: %w", err)
	}
	if path == "" {
		return "", ErrNoSelection
	}
	return path, nil
}

// New uses the command-line argument when one is given and falls back to
// the file chooser otherwise.
func New(args []string) Resolver {
	if len(args) > 0 {
		return ArgResolver{Args: args}
	}
	return DialogResolver{
		Title:      "Predict if the FMRI is Schizophrenia positive or negative",
		Extensions: ImageExtensions,
	}
}
