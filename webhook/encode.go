package webhook

import (
	"encoding/json"
	"net/url"
	"regexp"

	"github.com/Brotsalat/zkill-ws-slack/notification"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color     string       `json:"color"`
	Fallback  string       `json:"fallback"`
	Fields    []slackField `json:"fields"`
	ThumbUrl  string       `json:"thumb_url"`
	Title     string       `json:"title"`
	TitleLink string       `json:"title_link"`
}

type slackMessage struct {
	Attachments []slackAttachment `json:"attachments"`
}

// encodeSlack renders p as a form-encoded Slack incoming webhook request carrying one attachment.
// It returns the request body, its content type, and the JSON payload for logging.
func encodeSlack(p notification.Payload) ([]byte, string, []byte, error) {
	fields := make([]slackField, 0, len(p.Fields))
	for _, f := range p.Fields {
		fields = append(fields, slackField(f))
	}

	payload, err := json.Marshal(slackMessage{Attachments: []slackAttachment{{
		Color:     p.Color.String(),
		Fallback:  p.Fallback,
		Fields:    fields,
		ThumbUrl:  p.Thumbnail,
		Title:     p.Title,
		TitleLink: p.Link,
	}}})
	if err != nil {
		return nil, "", nil, errors.Wrap(err, "cannot encode Slack payload")
	}

	body := url.Values{"payload": {string(payload)}}.Encode()

	return []byte(body), "application/x-www-form-urlencoded", payload, nil
}

// slackLink matches the <url|text> link markup.
var slackLink = regexp.MustCompile(`<(https?://[^|>]+)\|([^>]*)>`)

// encodeDiscord renders p as a Discord webhook execution request carrying one embed.
func encodeDiscord(p notification.Payload) ([]byte, string, []byte, error) {
	fields := make([]*discordgo.MessageEmbedField, 0, len(p.Fields))
	for _, f := range p.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   f.Title,
			Value:  slackLink.ReplaceAllString(f.Value, "[$2]($1)"),
			Inline: f.Short,
		})
	}

	payload, err := json.Marshal(discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{{
		Title:     p.Title,
		URL:       p.Link,
		Color:     p.Color.RGB(),
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: p.Thumbnail},
		Fields:    fields,
	}}})
	if err != nil {
		return nil, "", nil, errors.Wrap(err, "cannot encode Discord payload")
	}

	return payload, "application/json", payload, nil
}
