// Package compose turns a question into the ordered list of outbound messages that present it on a chat channel.
package compose

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/myrjola/flowcast/internal/models"
)

// Channel limits, counted in runes.
const (
	MaxCaption           = 1024
	MaxBody              = 1024
	MaxHeader            = 60
	MaxOptionTitle       = 24
	MaxOptionDescription = 60
	MaxOptionsPerList    = 10
)

const (
	YesReplyID = "ans_yes"
	NoReplyID  = "ans_no"

	defaultHeader = "Select one"
	listButton    = "View options"
	replyPrompt   = "Please reply with your answer."
)

// Message is one of [Text], [Image], [ChoiceList] or [YesNo].
type Message interface {
	isMessage()
}

type Text struct {
	Body string
}

type Image struct {
	Link    string
	Caption string
}

// ChoiceList is an interactive list where the user picks one option.
type ChoiceList struct {
	Header  string
	Body    string
	Button  string
	Options []ChoiceOption
}

// ChoiceOption is a list row. ID carries the full option label so the reply can be matched against the routes.
type ChoiceOption struct {
	ID          string
	Title       string
	Description string
}

// YesNo is an interactive message with two reply buttons.
type YesNo struct {
	Body string
	Yes  ReplyButton
	No   ReplyButton
}

type ReplyButton struct {
	ID    string
	Title string
}

func (Text) isMessage()       {}
func (Image) isMessage()      {}
func (ChoiceList) isMessage() {}
func (YesNo) isMessage()      {}

// Compose returns the messages presenting q, in send order.
//
// An image, when present, is sent first with the caption. A choice question is sent as one list per
// MaxOptionsPerList options and a boolean question as a yes/no prompt. Other questions are sent as text, or as a
// short reply prompt when the image already carried the question text.
func Compose(q models.Question) []Message {
	var messages []Message
	caption := captionText(q)
	if q.HasImage() {
		messages = append(messages, Image{Link: q.Image.URL, Caption: Truncate(caption, MaxCaption)})
	}

	switch in := q.Input.(type) {
	case models.ChoiceInput:
		if len(in.Options) > 0 {
			return append(messages, choiceLists(q, in.Options)...)
		}
	case models.BooleanInput:
		return append(messages, YesNo{
			Body: Truncate(q.Text, MaxBody),
			Yes:  ReplyButton{ID: YesReplyID, Title: "Yes"},
			No:   ReplyButton{ID: NoReplyID, Title: "No"},
		})
	}

	if q.HasImage() {
		return append(messages, Text{Body: replyPrompt})
	}
	return append(messages, Text{Body: caption})
}

func captionText(q models.Question) string {
	var parts []string
	for _, s := range []string{q.Caption, q.Text} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func choiceLists(q models.Question, options []string) []Message {
	header := q.Caption
	if header == "" {
		header = defaultHeader
	}
	header = Truncate(header, MaxHeader)
	body := Truncate(q.Text, MaxBody)

	var lists []Message
	for chunk := range slices.Chunk(options, MaxOptionsPerList) {
		list := ChoiceList{Header: header, Body: body, Button: listButton, Options: make([]ChoiceOption, 0, len(chunk))}
		for _, option := range chunk {
			list.Options = append(list.Options, choiceOption(option))
		}
		lists = append(lists, list)
	}
	return lists
}

func choiceOption(label string) ChoiceOption {
	title := Truncate(label, MaxOptionTitle)
	rest := strings.TrimSpace(label[len(title):])
	return ChoiceOption{ID: label, Title: title, Description: Truncate(rest, MaxOptionDescription)}
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	i, n := 0, 0
	for i = range s {
		if n == limit {
			break
		}
		n++
	}
	return s[:i]
}
