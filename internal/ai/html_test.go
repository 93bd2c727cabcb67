package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Ocean Animals</title></head>
<body><h1>Ocean Animals</h1><p>Lesson content.</p></body>
</html>`

func TestExtractHTMLFromCodeFence(t *testing.T) {
	raw := "Here is the page:\n```html\n" + samplePage + "\n```\nDone."
	assert.Equal(t, samplePage, ExtractHTML(raw))
}

func TestExtractHTMLFromPlainFence(t *testing.T) {
	raw := "```\n" + samplePage + "\n```"
	assert.Equal(t, samplePage, ExtractHTML(raw))
}

func TestExtractHTMLBareDocument(t *testing.T) {
	assert.Equal(t, samplePage, ExtractHTML("\n"+samplePage+"\n"))
}

func TestValidatePage(t *testing.T) {
	assert.NoError(t, ValidatePage(samplePage))
	assert.Error(t, ValidatePage("I am sorry, I cannot generate that page."))
	assert.Error(t, ValidatePage("<html><body></body></html>"))
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "Ocean Animals", PageTitle(samplePage))
	assert.Equal(t, "Heading Only", PageTitle("<html><body><h1>Heading Only</h1></body></html>"))
	assert.Empty(t, PageTitle("<html><body><p>no title</p></body></html>"))
}
