package lexdialog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"petstay-frontdesk/internal/domain"
)

func TestDecodeCustomPayloadEmbeddedCard(t *testing.T) {
	content := `{"contentType":"ImageResponseCard","imageResponseCard":{` +
		`"title":"Add a photo?","subtitle":"Totally optional",` +
		`"buttons":[{"text":"Upload","value":"upload"},{"text":"Skip","value":"skip"}]}}`

	msg, err := decodeCustomPayload(content)
	require.NoError(t, err)
	require.Equal(t, domain.MessageCard, msg.Kind)
	require.Equal(t, "Add a photo?", msg.Title)
	require.Equal(t, "Totally optional", msg.Subtitle)
	require.Equal(t, []domain.Button{
		{Label: "Upload", Value: "upload"},
		{Label: "Skip", Value: "skip"},
	}, msg.Buttons)
	require.Equal(t, content, msg.Raw)
}

func TestDecodeCustomPayloadButtonTemplate(t *testing.T) {
	content := `{"type":"template","payload":{"template_type":"button",` +
		`"text":"Confirm your booking?","buttons":[` +
		`{"title":"Yes","payload":"confirm"},{"title":"No","payload":"cancel"}]}}`

	msg, err := decodeCustomPayload(content)
	require.NoError(t, err)
	require.Equal(t, domain.MessageCustom, msg.Kind)
	require.Equal(t, "Confirm your booking?", msg.Text)
	require.Equal(t, []domain.Button{
		{Label: "Yes", Value: "confirm"},
		{Label: "No", Value: "cancel"},
	}, msg.Buttons)
}

func TestDecodeCustomPayloadGenericOptions(t *testing.T) {
	content := `{"text":"What next?","options":[` +
		`{"label":"Check in","intent":"CheckIn"},{"value":"help"}]}`

	msg, err := decodeCustomPayload(content)
	require.NoError(t, err)
	require.Equal(t, domain.MessageCustom, msg.Kind)
	require.Equal(t, "What next?", msg.Text)
	require.Equal(t, []domain.Button{
		{Label: "Check in", Value: "CheckIn"},
		{Label: "help", Value: "help"},
	}, msg.Buttons)
}

func TestDecodeCustomPayloadTextOnly(t *testing.T) {
	msg, err := decodeCustomPayload(`{"text":"Just words"}`)
	require.NoError(t, err)
	require.Equal(t, domain.MessageCustom, msg.Kind)
	require.Equal(t, "Just words", msg.Text)
	require.Empty(t, msg.Buttons)
}

func TestDecodeCustomPayloadEmptyContent(t *testing.T) {
	msg, err := decodeCustomPayload("   ")
	require.NoError(t, err)
	require.Equal(t, domain.MessageText, msg.Kind)
}

func TestDecodeCustomPayloadMalformed(t *testing.T) {
	_, err := decodeCustomPayload(`{"text":`)
	require.Error(t, err)
}
