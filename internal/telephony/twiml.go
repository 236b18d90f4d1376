package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal TwiML response builder. It intentionally avoids any provider SDK
// dependency; only the verbs the voice webhook needs are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlDial struct {
	XMLName  xml.Name `xml:"Dial"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:"Number,omitempty"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

// RenderVoiceTwiML answers the provider's voice webhook: a dial instruction
// naming the fixed caller ID and the destination, or a spoken fallback when
// no destination is present.
func RenderVoiceTwiML(callerID, to string) (string, error) {
	var r twimlResponse

	if strings.TrimSpace(to) == "" {
		r.Verbs = append(r.Verbs, twimlSay{Text: "No phone number provided."})
	} else {
		if strings.TrimSpace(callerID) == "" {
			return "", errors.New("telephony: caller id required for dial")
		}
		r.Verbs = append(r.Verbs, twimlDial{CallerID: callerID, Number: to})
	}

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
