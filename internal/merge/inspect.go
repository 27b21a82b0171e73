package merge

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/nao1215/pdfharvest/internal/model"
)

// errZeroPages marks a structurally valid document without pages.
var errZeroPages = errors.New("document has no pages")

// inspect validates the file at path and returns its page count. On failure
// it returns the skip reason and the cause.
func inspect(path string, conf *pdfmodel.Configuration) (int, model.SkipReason, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, model.SkipUnreadable, err
	}
	if info.Size() == 0 {
		return 0, model.SkipEmpty, errZeroPages
	}

	f, err := os.Open(path) //nolint:gosec // path comes from the merge input list
	if err != nil {
		return 0, model.SkipUnreadable, err
	}
	_ = f.Close() //nolint:errcheck // opened only to probe permissions

	if err := api.ValidateFile(path, conf); err != nil {
		if isEncryption(err) {
			return 0, model.SkipUnreadable, err
		}
		return 0, model.SkipCorrupt, err
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		if isEncryption(err) {
			return 0, model.SkipUnreadable, err
		}
		return 0, model.SkipCorrupt, err
	}
	if pages == 0 {
		return 0, model.SkipEmpty, errZeroPages
	}

	return pages, 0, nil
}

// isEncryption reports whether a pdfcpu error stems from an encrypted
// document we have no password for.
func isEncryption(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

var disableConfigDir sync.Once

// newConfiguration returns the pdfcpu configuration used for validation
// and merging. The user configuration directory is never touched.
func newConfiguration() *pdfmodel.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return conf
}
