// Package classify decides whether a question may be answered from uploaded
// regulations, from general procurement knowledge, or not at all.
package classify

import (
	"strings"

	"github.com/hyperjump/regubot/internal/catalog"
	"github.com/hyperjump/regubot/internal/models"
)

// Context is the closed set of routing decisions.
type Context int

const (
	// NonPbj: the question is outside procurement; no answer is generated.
	NonPbj Context = iota
	// PbjNoUpload: a procurement question with no catalog regulation uploaded.
	PbjNoUpload
	// UploadedRegulations: at least one catalog regulation is uploaded; answers are grounded.
	UploadedRegulations
)

func (c Context) String() string {
	switch c {
	case UploadedRegulations:
		return "uploaded_regulations"
	case PbjNoUpload:
		return "pbj_no_upload"
	case NonPbj:
		return "non_pbj"
	}
	return "unknown"
}

// Decision is the classifier output.
type Decision struct {
	Context Context
	// Uploaded lists the catalog regulations found among processed files, in catalog order.
	Uploaded []string
}

// keywords is the procurement vocabulary, English and Indonesian. Matching is a
// case-insensitive substring test.
var keywords = []string{
	"procurement", "tender", "contract", "bidding", "vendor", "supplier",
	"purchas", "e-catalog", "e-catalogue", "self-managed", "owner estimate",
	"goods and services",
	"pengadaan", "barang/jasa", "barang dan jasa", "pbj", "lkpp", "lelang",
	"kontrak", "penyedia", "swakelola", "e-katalog", "katalog elektronik",
	"hps", "harga perkiraan sendiri", "pokja", "ukpbj", "ppk", "pejabat pengadaan",
	"tender cepat", "seleksi", "penunjukan langsung", "pengadaan langsung",
	"perpres", "peraturan presiden", "spse", "sanggah", "jaminan",
}

// Keywords returns a copy of the procurement vocabulary.
func Keywords() []string {
	return append([]string(nil), keywords...)
}

// Uploaded returns the catalog names that equal or are contained in a processed file name.
func Uploaded(state models.UploadState, cat *catalog.Catalog) []string {
	var out []string
	for _, name := range cat.Names() {
		for _, f := range state.ProcessedFiles {
			if strings.Contains(f, name) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// IsDomainQuestion reports whether question mentions any procurement keyword.
func IsDomainQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, k := range keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// Classify routes a question. Any uploaded catalog regulation wins regardless of
// the question's content.
func Classify(question string, state models.UploadState, cat *catalog.Catalog) Decision {
	if uploaded := Uploaded(state, cat); len(uploaded) > 0 {
		return Decision{Context: UploadedRegulations, Uploaded: uploaded}
	}
	if IsDomainQuestion(question) {
		return Decision{Context: PbjNoUpload}
	}
	return Decision{Context: NonPbj}
}
