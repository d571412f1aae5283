// Package telephony speaks the Twilio voice protocol: TwiML responses for the
// turn webhook, request signature checks and the REST call placement API.
package telephony

import (
	"github.com/twilio/twilio-go/twiml"
)

// Response is a TwiML <Response> document.
type Response struct {
	verbs []twiml.Element
}

// GatherSpeech asks a question and waits for the spoken answer.
func GatherSpeech(text, action string) *Response {
	return &Response{verbs: []twiml.Element{&twiml.VoiceGather{
		Input:         "speech",
		SpeechTimeout: "auto",
		Action:        action,
		Method:        "POST",
		InnerElements: []twiml.Element{&twiml.VoiceSay{Message: text}},
	}}}
}

// SayAndRedirect speaks text and then returns to the turn endpoint.
func SayAndRedirect(text, action string) *Response {
	return &Response{verbs: []twiml.Element{
		&twiml.VoiceSay{Message: text},
		&twiml.VoiceRedirect{Url: action, Method: "POST"},
	}}
}

// SayAndHangup speaks text, if any, and ends the call.
func SayAndHangup(text string) *Response {
	r := &Response{}
	if text != "" {
		r.verbs = append(r.verbs, &twiml.VoiceSay{Message: text})
	}
	r.verbs = append(r.verbs, &twiml.VoiceHangup{})
	return r
}

// Marshal renders the document with the XML header.
func (r *Response) Marshal() ([]byte, error) {
	doc, err := twiml.Voice(r.verbs)
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}
