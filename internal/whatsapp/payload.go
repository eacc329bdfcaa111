package whatsapp

import (
	"fmt"
	"log/slog"

	"github.com/myrjola/flowcast/internal/compose"
	"github.com/myrjola/flowcast/internal/errors"
)

// Message is the JSON body of a Cloud API send request.
type Message struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *Text        `json:"text,omitempty"`
	Image            *Image       `json:"image,omitempty"`
	Interactive      *Interactive `json:"interactive,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Image struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type Interactive struct {
	Type   string  `json:"type"`
	Header *Header `json:"header,omitempty"`
	Body   Text    `json:"body"`
	Action Action  `json:"action"`
}

type Header struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Action struct {
	Button   string    `json:"button,omitempty"`
	Sections []Section `json:"sections,omitempty"`
	Buttons  []Button  `json:"buttons,omitempty"`
}

type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

type Row struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Button struct {
	Type  string `json:"type"`
	Reply Reply  `json:"reply"`
}

type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Payload converts a composed message to the Cloud API representation.
func Payload(to string, msg compose.Message) (Message, error) {
	m := Message{MessagingProduct: "whatsapp", RecipientType: "individual", To: to}
	switch msg := msg.(type) {
	case compose.Text:
		m.Type = "text"
		m.Text = &Text{Body: msg.Body}
	case compose.Image:
		m.Type = "image"
		m.Image = &Image{Link: msg.Link, Caption: msg.Caption}
	case compose.ChoiceList:
		rows := make([]Row, 0, len(msg.Options))
		for _, option := range msg.Options {
			rows = append(rows, Row{ID: option.ID, Title: option.Title, Description: option.Description})
		}
		m.Type = "interactive"
		m.Interactive = &Interactive{
			Type:   "list",
			Header: &Header{Type: "text", Text: msg.Header},
			Body:   Text{Body: msg.Body},
			Action: Action{Button: msg.Button, Sections: []Section{{Title: "Options", Rows: rows}}},
		}
	case compose.YesNo:
		m.Type = "interactive"
		m.Interactive = &Interactive{
			Type: "button",
			Body: Text{Body: msg.Body},
			Action: Action{Buttons: []Button{
				{Type: "reply", Reply: Reply{ID: msg.Yes.ID, Title: msg.Yes.Title}},
				{Type: "reply", Reply: Reply{ID: msg.No.ID, Title: msg.No.Title}},
			}},
		}
	default:
		return Message{}, errors.Wrap(ErrUnsupportedMessage, "build payload", slog.String("type", fmt.Sprintf("%T", msg)))
	}
	return m, nil
}
