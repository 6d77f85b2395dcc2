package slack

import (
	"fmt"
)

// Surface block-count limits enforced by Slack. Exceeding them gets the whole
// view kicked back, so we catch it before pushing.
const (
	viewBlockLimit    = 100 // home and modal surfaces
	messageBlockLimit = 50
)

// ValidateBlocks checks a block list against the limits of the surface it is
// destined for. Slack rejects empty text fields with an opaque error, so that
// is checked here too.
func ValidateBlocks(surface string, blocks []Block) error {
	switch surface {
	case "modal", "home":
		if len(blocks) > viewBlockLimit {
			return fmt.Errorf("block list too long for %s surface: %d/%d", surface, len(blocks), viewBlockLimit)
		}
	case "message", "msg":
		if len(blocks) > messageBlockLimit {
			return fmt.Errorf("block list too long for message surface: %d/%d", len(blocks), messageBlockLimit)
		}
	default:
		return fmt.Errorf("invalid surface type: %s", surface)
	}

	for i, b := range blocks {
		if err := checkBlockText(b); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, b.Type, err)
		}
	}
	return nil
}

func checkBlockText(b Block) error {
	if err := checkText(b.Text); err != nil {
		return err
	}
	if err := checkText(b.Label); err != nil {
		return err
	}
	if err := checkText(b.Hint); err != nil {
		return err
	}
	for _, el := range b.Elements {
		switch v := el.(type) {
		case *Text:
			if err := checkText(v); err != nil {
				return err
			}
		case Button:
			if err := checkText(v.Text); err != nil {
				return err
			}
		case *Button:
			if err := checkText(v.Text); err != nil {
				return err
			}
		}
	}
	if b.Accessory != nil && b.Accessory.ImageURL == "" {
		return fmt.Errorf("image accessory with empty url")
	}
	return nil
}

func checkText(t *Text) error {
	if t != nil && t.Text == "" {
		return fmt.Errorf("empty text field")
	}
	return nil
}
