package slack

// Block Kit structures, limited to the block types the app home, modals and
// notifications actually use.

// Text is a Block Kit text object.
type Text struct {
	Type  string `json:"type"` // plain_text | mrkdwn
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

func Mrkdwn(text string) *Text {
	return &Text{Type: "mrkdwn", Text: text}
}

func Plain(text string) *Text {
	return &Text{Type: "plain_text", Text: text, Emoji: true}
}

// Block is a single layout block. Fields are populated according to Type;
// unused fields stay empty and are omitted from the wire format.
type Block struct {
	Type      string        `json:"type"`
	BlockID   string        `json:"block_id,omitempty"`
	Text      *Text         `json:"text,omitempty"`
	Elements  []interface{} `json:"elements,omitempty"` // context texts or actions elements
	Accessory *Image        `json:"accessory,omitempty"`
	ImageURL  string        `json:"image_url,omitempty"`
	AltText   string        `json:"alt_text,omitempty"`

	// input block fields
	Label    *Text       `json:"label,omitempty"`
	Element  interface{} `json:"element,omitempty"`
	Hint     *Text       `json:"hint,omitempty"`
	Optional bool        `json:"optional,omitempty"`
}

// Image is both the standalone image block payload and a section accessory.
type Image struct {
	Type     string `json:"type"` // image
	ImageURL string `json:"image_url"`
	AltText  string `json:"alt_text"`
}

// Button is an actions-block element.
type Button struct {
	Type     string `json:"type"` // button
	Text     *Text  `json:"text"`
	ActionID string `json:"action_id"`
	Value    string `json:"value,omitempty"`
	Style    string `json:"style,omitempty"`
}

type MultiUsersSelect struct {
	Type     string `json:"type"` // multi_users_select
	ActionID string `json:"action_id"`
}

type UsersSelect struct {
	Type        string `json:"type"` // users_select
	ActionID    string `json:"action_id"`
	Placeholder *Text  `json:"placeholder,omitempty"`
}

type DatePicker struct {
	Type        string `json:"type"` // datepicker
	ActionID    string `json:"action_id"`
	InitialDate string `json:"initial_date,omitempty"`
}

type NumberInput struct {
	Type             string `json:"type"` // number_input
	ActionID         string `json:"action_id"`
	IsDecimalAllowed bool   `json:"is_decimal_allowed"`
	MinValue         string `json:"min_value,omitempty"`
	MaxValue         string `json:"max_value,omitempty"`
}

type PlainTextInput struct {
	Type      string `json:"type"` // plain_text_input
	ActionID  string `json:"action_id"`
	Multiline bool   `json:"multiline,omitempty"`
}

func Section(text string) Block {
	return Block{Type: "section", Text: Mrkdwn(text)}
}

func SectionWithImage(text string, imageURL, altText string) Block {
	b := Section(text)
	b.Accessory = &Image{Type: "image", ImageURL: imageURL, AltText: altText}
	return b
}

func Header(text string) Block {
	return Block{Type: "header", Text: Plain(text)}
}

func Divider() Block {
	return Block{Type: "divider"}
}

func Context(texts ...string) Block {
	b := Block{Type: "context"}
	for _, t := range texts {
		b.Elements = append(b.Elements, Mrkdwn(t))
	}
	return b
}

func Actions(elements ...interface{}) Block {
	return Block{Type: "actions", Elements: elements}
}

func ImageBlock(imageURL, altText string) Block {
	return Block{Type: "image", ImageURL: imageURL, AltText: altText}
}

func Input(blockID, label string, element interface{}, hint string) Block {
	b := Block{Type: "input", BlockID: blockID, Label: Plain(label), Element: element}
	if hint != "" {
		b.Hint = Plain(hint)
	}
	return b
}

// View is a Block Kit surface: the app home or a modal.
type View struct {
	Type            string  `json:"type"` // home | modal
	Title           *Text   `json:"title,omitempty"`
	Submit          *Text   `json:"submit,omitempty"`
	Close           *Text   `json:"close,omitempty"`
	CallbackID      string  `json:"callback_id,omitempty"`
	PrivateMetadata string  `json:"private_metadata,omitempty"`
	Blocks          []Block `json:"blocks"`
}

// modalTitleLimit is Slack's hard cap on modal title length.
const modalTitleLimit = 24

func HomeView(blocks []Block) View {
	return View{Type: "home", Blocks: blocks}
}

func ModalView(title, callbackID, submit string, blocks []Block) View {
	// Truncate by runes, a display name can put a multi-byte character on the
	// boundary.
	if r := []rune(title); len(r) > modalTitleLimit {
		title = string(r[:modalTitleLimit])
	}
	v := View{
		Type:       "modal",
		Title:      Plain(title),
		Close:      Plain("Cancel"),
		CallbackID: callbackID,
		Blocks:     blocks,
	}
	if submit != "" {
		v.Submit = Plain(submit)
	}
	return v
}
