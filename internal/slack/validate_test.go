package slack

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestValidateBlocksSurfaceLimits(t *testing.T) {
	many := func(n int) []Block {
		blocks := make([]Block, n)
		for i := range blocks {
			blocks[i] = Section("ok")
		}
		return blocks
	}

	assert.NoError(t, ValidateBlocks("home", many(100)))
	assert.Error(t, ValidateBlocks("home", many(101)))
	assert.NoError(t, ValidateBlocks("modal", many(100)))
	assert.Error(t, ValidateBlocks("modal", many(101)))
	assert.NoError(t, ValidateBlocks("message", many(50)))
	assert.Error(t, ValidateBlocks("message", many(51)))
	assert.Error(t, ValidateBlocks("carousel", many(1)))
}

func TestValidateBlocksRejectsEmptyText(t *testing.T) {
	assert.Error(t, ValidateBlocks("home", []Block{Section("")}))
	assert.Error(t, ValidateBlocks("home", []Block{Header("")}))
	assert.Error(t, ValidateBlocks("home", []Block{Context("")}))
	assert.Error(t, ValidateBlocks("modal", []Block{
		Actions(Button{Type: "button", Text: Plain(""), ActionID: "a"}),
	}))

	// An image accessory needs a url.
	bad := Section("text")
	bad.Accessory = &Image{Type: "image"}
	assert.Error(t, ValidateBlocks("home", []Block{bad}))

	assert.NoError(t, ValidateBlocks("home", []Block{
		Header("Welcome"),
		Section("hello"),
		Divider(),
		Context("fine print"),
		SectionWithImage("with image", "https://example.test/i.png", "alt"),
	}))
}

func TestModalViewTruncatesTitle(t *testing.T) {
	v := ModalView("This title is much longer than Slack permits", "cb", "Go", nil)
	assert.LessOrEqual(t, utf8.RuneCountInString(v.Title.Text), modalTitleLimit)
	assert.Equal(t, "cb", v.CallbackID)
	assert.Equal(t, "Go", v.Submit.Text)
	assert.Equal(t, "Cancel", v.Close.Text)

	noSubmit := ModalView("Short", "cb", "", nil)
	assert.Nil(t, noSubmit.Submit)
}

func TestModalViewTruncationIsRuneSafe(t *testing.T) {
	// A multi-byte name straddling the boundary must not be cut mid-rune.
	title := "View as " + strings.Repeat("é", 30)
	v := ModalView(title, "cb", "", nil)

	assert.True(t, utf8.ValidString(v.Title.Text))
	assert.Equal(t, modalTitleLimit, utf8.RuneCountInString(v.Title.Text))
}
