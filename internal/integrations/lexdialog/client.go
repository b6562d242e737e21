// Package lexdialog implements the dialog transport on Lex Runtime V2.
// Engine responses are normalized into the domain message union here, at
// the boundary, so no other package sniffs content types.
package lexdialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimev2"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimev2/types"

	"petstay-frontdesk/internal/domain"
)

// lexAPI is the minimal Lex Runtime interface required by Client.
// *lexruntimev2.Client satisfies it.
type lexAPI interface {
	RecognizeText(ctx context.Context, in *lexruntimev2.RecognizeTextInput, optFns ...func(*lexruntimev2.Options)) (*lexruntimev2.RecognizeTextOutput, error)
}

// Client sends conversation turns to one bot alias.
type Client struct {
	api        lexAPI
	botID      string
	botAliasID string
	localeID   string
	logger     *slog.Logger
}

func New(api lexAPI, botID, botAliasID, localeID string, logger *slog.Logger) (*Client, error) {
	if api == nil {
		return nil, errors.New("lexdialog: api must not be nil")
	}
	if strings.TrimSpace(botID) == "" || strings.TrimSpace(botAliasID) == "" {
		return nil, errors.New("lexdialog: bot id and alias id are required")
	}
	if localeID == "" {
		localeID = "en_US"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:        api,
		botID:      botID,
		botAliasID: botAliasID,
		localeID:   localeID,
		logger:     logger,
	}, nil
}

// SendTurn implements usecase.DialogTransport.
func (c *Client) SendTurn(ctx context.Context, req domain.TurnRequest) (domain.TurnResponse, error) {
	in := &lexruntimev2.RecognizeTextInput{
		BotId:      aws.String(c.botID),
		BotAliasId: aws.String(c.botAliasID),
		LocaleId:   aws.String(c.localeID),
		SessionId:  aws.String(req.SessionID),
		Text:       aws.String(req.Text),
	}
	if len(req.SessionAttributes) > 0 || req.SlotOverride != nil {
		in.SessionState = &types.SessionState{}
		if len(req.SessionAttributes) > 0 {
			in.SessionState.SessionAttributes = req.SessionAttributes
		}
		if req.SlotOverride != nil {
			in.SessionState.Intent = &types.Intent{
				Name:  aws.String(req.IntentName),
				Slots: encodeSlots(req.SlotOverride),
			}
		}
	}

	out, err := c.api.RecognizeText(ctx, in)
	if err != nil {
		return domain.TurnResponse{}, fmt.Errorf("lexdialog: recognize text: %w", err)
	}
	return c.decode(out), nil
}

func (c *Client) decode(out *lexruntimev2.RecognizeTextOutput) domain.TurnResponse {
	resp := domain.TurnResponse{SessionAttributes: map[string]string{}}
	if ss := out.SessionState; ss != nil {
		if ss.SessionAttributes != nil {
			resp.SessionAttributes = ss.SessionAttributes
		}
		if it := ss.Intent; it != nil {
			resp.IntentName = aws.ToString(it.Name)
			resp.TurnState = domain.TurnState(it.State)
			if it.Slots != nil {
				resp.Slots = decodeSlots(it.Slots)
			}
		}
	}
	for _, m := range out.Messages {
		resp.Messages = append(resp.Messages, c.decodeMessage(m))
	}
	return resp
}

func (c *Client) decodeMessage(m types.Message) domain.Message {
	content := aws.ToString(m.Content)

	if m.ImageResponseCard != nil {
		return cardMessage(
			aws.ToString(m.ImageResponseCard.Title),
			aws.ToString(m.ImageResponseCard.Subtitle),
			decodeCardButtons(m.ImageResponseCard.Buttons),
		)
	}

	if m.ContentType == types.MessageContentTypeCustomPayload {
		msg, err := decodeCustomPayload(content)
		if err != nil {
			// Malformed payloads degrade to raw text rather than breaking
			// the turn loop.
			c.logger.Warn("custom payload did not parse, rendering raw",
				"err", err,
			)
			return domain.Message{Kind: domain.MessageText, Text: content, Raw: content}
		}
		return msg
	}

	return domain.TextMessage(content)
}

func cardMessage(title, subtitle string, buttons []domain.Button) domain.Message {
	return domain.Message{
		Kind:     domain.MessageCard,
		Title:    title,
		Subtitle: subtitle,
		Buttons:  buttons,
	}
}

func decodeCardButtons(buttons []types.Button) []domain.Button {
	out := make([]domain.Button, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, normalizeButton(aws.ToString(b.Text), aws.ToString(b.Value)))
	}
	return out
}

// normalizeButton mirrors what the chat UI historically tolerated: either
// side of a button may be missing.
func normalizeButton(text, value string) domain.Button {
	label := firstNonEmpty(text, value, "Choose")
	return domain.Button{
		Label: label,
		Value: firstNonEmpty(value, text, label),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func encodeSlots(slots map[string]domain.SlotValue) map[string]types.Slot {
	out := make(map[string]types.Slot, len(slots))
	for name, v := range slots {
		slot := types.Slot{Value: &types.Value{}}
		if v.InterpretedValue != "" {
			slot.Value.InterpretedValue = aws.String(v.InterpretedValue)
		}
		if v.OriginalValue != "" {
			slot.Value.OriginalValue = aws.String(v.OriginalValue)
		}
		out[name] = slot
	}
	return out
}

func decodeSlots(slots map[string]types.Slot) map[string]domain.SlotValue {
	out := make(map[string]domain.SlotValue, len(slots))
	for name, s := range slots {
		var v domain.SlotValue
		if s.Value != nil {
			v.InterpretedValue = aws.ToString(s.Value.InterpretedValue)
			v.OriginalValue = aws.ToString(s.Value.OriginalValue)
		}
		out[name] = v
	}
	return out
}
