package domain

// MessageKind discriminates the renderable message variants the dialog
// engine can send. Responses are normalized into this union once, at the
// transport boundary, instead of being re-sniffed by every consumer.
type MessageKind string

const (
	// MessageText is a plain chat bubble.
	MessageText MessageKind = "text"
	// MessageCard is a title/subtitle card with optional action buttons.
	MessageCard MessageKind = "card"
	// MessageCustom is a custom payload that decoded into text plus
	// buttons. Raw keeps the original payload for logging.
	MessageCustom MessageKind = "custom"
)

// Button is one selectable action offered to the user. Value is what gets
// sent back to the dialog engine when chosen.
type Button struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Message is one renderable unit of a turn response.
type Message struct {
	Kind     MessageKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	Title    string      `json:"title,omitempty"`
	Subtitle string      `json:"subtitle,omitempty"`
	Buttons  []Button    `json:"buttons,omitempty"`
	Raw      string      `json:"-"`
}

// TextMessage builds a plain text message.
func TextMessage(text string) Message {
	return Message{Kind: MessageText, Text: text}
}
