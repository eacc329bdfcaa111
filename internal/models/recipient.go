package models

import (
	"encoding/json"
	"time"

	"github.com/myrjola/flowcast/internal/errors"
)

// Recipient is the conversation record of one recipient, keyed by the digits-only phone number.
type Recipient struct {
	ID          string `json:"recipientId"`
	DisplayName string `json:"displayName"`
	// AdminViewed is maintained by operators and never touched by the engine.
	AdminViewed bool       `json:"adminViewed"`
	Responses   []Response `json:"responses"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Response is the recorded answer to one question. A recipient has at most one response per question.
type Response struct {
	QuestionID QuestionID
	Answer     Answer
	Confirmed  bool
}

// responseJSON carries the answer kind so that the bare answer value can be decoded again.
type responseJSON struct {
	QuestionID QuestionID      `json:"questionId"`
	Kind       AnswerKind      `json:"kind"`
	Answer     json.RawMessage `json:"answer"`
	Confirmed  bool            `json:"confirmed"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	answer, err := r.Answer.MarshalJSON()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(responseJSON{
		QuestionID: r.QuestionID,
		Kind:       r.Answer.Kind(),
		Answer:     answer,
		Confirmed:  r.Confirmed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal response")
	}
	return data, nil
}

// UnmarshalJSON is the inverse of [Response.MarshalJSON].
func (r *Response) UnmarshalJSON(data []byte) error {
	var v responseJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "unmarshal response")
	}
	answer, err := ParseAnswer(v.Kind, v.Answer)
	if err != nil {
		return err
	}
	*r = Response{QuestionID: v.QuestionID, Answer: answer, Confirmed: v.Confirmed}
	return nil
}

// Response returns the response to the given question.
func (r Recipient) Response(id QuestionID) (Response, bool) {
	for _, resp := range r.Responses {
		if resp.QuestionID == id {
			return resp, true
		}
	}
	return Response{}, false
}
