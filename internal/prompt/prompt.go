// Package prompt assembles the instruction text sent to the generation service.
package prompt

import (
	"fmt"
	"strings"

	"github.com/hyperjump/regubot/internal/catalog"
)

// Section headings the model is told to produce.
const (
	AnswerHeading = "Answer"
	SourceHeading = "Regulatory Source"
)

const (
	groundedPreamble = "You are an assistant for procurement of goods and services regulations. " +
		"Answer using the regulation excerpts provided in the context. If the excerpts do not " +
		"contain the answer, say that the answer is not available in the uploaded regulations. " +
		"Do not invent article numbers."
	ungroundedPreamble = "You are an assistant for procurement of goods and services regulations. " +
		"No regulation document has been uploaded, so answer from general knowledge of the " +
		"regulations listed below and state clearly that the answer has not been verified against " +
		"an uploaded document. Only cite an article number when you are certain of it."
)

// Build returns the prompt for question. The allowed regulations are the
// non-excluded catalog names in catalog order; passages, when given, are placed in
// a context block. Build has no side effects.
func Build(question string, hasUploaded bool, cat *catalog.Catalog, passages ...string) string {
	var b strings.Builder

	if hasUploaded {
		b.WriteString(groundedPreamble)
	} else {
		b.WriteString(ungroundedPreamble)
	}
	b.WriteString("\n\n")

	b.WriteString("Regulations you may cite:\n")
	for i, name := range cat.Usable() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}

	if excluded := cat.Exclusions(); len(excluded) > 0 {
		fmt.Fprintf(&b, "\nDo not use the following regulations as a source, they have been revoked: %s.\n",
			strings.Join(excluded, "; "))
	}

	b.WriteString("\nWhen citing, write the full regulation name followed by \", Article <number>\", " +
		"for example \"Presidential Regulation No 16 of 2018, Article 3\". " +
		"Circulars and decisions have no article numbers; cite them by name only.\n")

	if len(passages) > 0 {
		b.WriteString("\nContext:\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(p))
		}
	}

	fmt.Fprintf(&b, "\nQuestion:\n%s\n", strings.TrimSpace(question))

	fmt.Fprintf(&b, "\nRespond in exactly two sections:\n%s:\n<the answer>\n\n%s:\n<the regulations and articles the answer relies on>\n",
		AnswerHeading, SourceHeading)
	return b.String()
}
