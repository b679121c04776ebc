// Package twiml is a minimal Twilio Markup Language builder.
// It intentionally avoids any provider SDK dependency.
//
// Only the verbs this server emits are included.
package twiml

import (
	"bytes"
	"encoding/xml"
)

type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

func New() *Response { return &Response{} }

type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type Gather struct {
	XMLName             xml.Name `xml:"Gather"`
	Action              string   `xml:"action,attr,omitempty"`
	Method              string   `xml:"method,attr,omitempty"`
	NumDigits           int      `xml:"numDigits,attr,omitempty"`
	Timeout             int      `xml:"timeout,attr,omitempty"`
	ActionOnEmptyResult bool     `xml:"actionOnEmptyResult,attr,omitempty"`
	Verbs               []any    `xml:",any"`
}

type Dial struct {
	XMLName    xml.Name    `xml:"Dial"`
	Conference *Conference `xml:"Conference,omitempty"`
}

// Conference joins the leg into a named ad-hoc room. The room name doubles
// as the isolation key: both legs of one task dial the same name.
type Conference struct {
	XMLName             xml.Name `xml:"Conference"`
	EndConferenceOnExit bool     `xml:"endConferenceOnExit,attr"`
	StatusCallback      string   `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent string   `xml:"statusCallbackEvent,attr,omitempty"`
	Name                string   `xml:",chardata"`
}

type Record struct {
	XMLName            xml.Name `xml:"Record"`
	Action             string   `xml:"action,attr,omitempty"`
	MaxLength          int      `xml:"maxLength,attr,omitempty"`
	PlayBeep           bool     `xml:"playBeep,attr,omitempty"`
	Transcribe         bool     `xml:"transcribe,attr,omitempty"`
	TranscribeCallback string   `xml:"transcribeCallback,attr,omitempty"`
}

type Message struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

func (r *Response) Say(text string) *Response {
	r.Verbs = append(r.Verbs, Say{Text: text})
	return r
}

func (r *Response) SayLang(text, language string) *Response {
	r.Verbs = append(r.Verbs, Say{Text: text, Language: language})
	return r
}

func (r *Response) Play(url string) *Response {
	r.Verbs = append(r.Verbs, Play{URL: url})
	return r
}

func (r *Response) Pause(seconds int) *Response {
	r.Verbs = append(r.Verbs, Pause{Length: seconds})
	return r
}

func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

func (r *Response) Gather(g Gather) *Response {
	r.Verbs = append(r.Verbs, g)
	return r
}

func (r *Response) DialConference(c Conference) *Response {
	r.Verbs = append(r.Verbs, Dial{Conference: &c})
	return r
}

func (r *Response) Record(rec Record) *Response {
	r.Verbs = append(r.Verbs, rec)
	return r
}

func (r *Response) Message(body string) *Response {
	r.Verbs = append(r.Verbs, Message{Body: body})
	return r
}

// Render encodes the response document.
func (r *Response) Render() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
