package lexdialog

import (
	"encoding/json"
	"fmt"
	"strings"

	"petstay-frontdesk/internal/domain"
)

// customPayload covers every shape the fulfillment side has been observed
// to emit: an embedded response card, a messenger-style button template,
// and a loose {text, buttons/options/actions/suggestions} object.
type customPayload struct {
	ContentType       string          `json:"contentType"`
	ImageResponseCard *payloadCard    `json:"imageResponseCard"`
	Type              string          `json:"type"`
	Payload           *buttonTemplate `json:"payload"`
	Text              string          `json:"text"`
	Buttons           []payloadOption `json:"buttons"`
	Options           []payloadOption `json:"options"`
	Actions           []payloadOption `json:"actions"`
	Suggestions       []payloadOption `json:"suggestions"`
}

type payloadCard struct {
	Title    string          `json:"title"`
	Subtitle string          `json:"subtitle"`
	Buttons  []payloadOption `json:"buttons"`
}

type buttonTemplate struct {
	TemplateType string           `json:"template_type"`
	Text         string           `json:"text"`
	Buttons      []templateButton `json:"buttons"`
}

type templateButton struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type payloadOption struct {
	Text   string `json:"text"`
	Title  string `json:"title"`
	Label  string `json:"label"`
	Value  string `json:"value"`
	Intent string `json:"intent"`
}

// decodeCustomPayload resolves a custom payload into exactly one message
// variant. Unknown but well-formed payloads degrade to a custom message
// with whatever text was present.
func decodeCustomPayload(content string) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.TextMessage(""), nil
	}

	var p customPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return domain.Message{}, fmt.Errorf("lexdialog: parse custom payload: %w", err)
	}

	if p.ImageResponseCard != nil {
		card := p.ImageResponseCard
		msg := cardMessage(card.Title, card.Subtitle, optionButtons(card.Buttons))
		msg.Raw = content
		return msg, nil
	}

	if p.Type == "template" && p.Payload != nil && p.Payload.TemplateType == "button" {
		buttons := make([]domain.Button, 0, len(p.Payload.Buttons))
		for _, b := range p.Payload.Buttons {
			buttons = append(buttons, normalizeButton(b.Title, b.Payload))
		}
		return domain.Message{
			Kind:    domain.MessageCustom,
			Text:    p.Payload.Text,
			Buttons: buttons,
			Raw:     content,
		}, nil
	}

	opts := p.Buttons
	if opts == nil {
		opts = p.Options
	}
	if opts == nil {
		opts = p.Actions
	}
	if opts == nil {
		opts = p.Suggestions
	}
	return domain.Message{
		Kind:    domain.MessageCustom,
		Text:    p.Text,
		Buttons: optionButtons(opts),
		Raw:     content,
	}, nil
}

func optionButtons(opts []payloadOption) []domain.Button {
	if len(opts) == 0 {
		return nil
	}
	out := make([]domain.Button, 0, len(opts))
	for _, o := range opts {
		label := firstNonEmpty(o.Text, o.Title, o.Label, o.Value, "Select")
		value := firstNonEmpty(o.Value, o.Intent, o.Text, o.Title, "Select")
		out = append(out, domain.Button{Label: label, Value: value})
	}
	return out
}
