package twilio

import (
	"encoding/xml"
	"fmt"
)

type messagingResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// MessagingTwiML renders the TwiML document that instructs Twilio to reply to
// the inbound message with the given text.
func MessagingTwiML(message string) (string, error) {
	out, err := xml.Marshal(messagingResponse{Message: message})
	if err != nil {
		return "", fmt.Errorf("marshal twiml: %w", err)
	}
	return xml.Header + string(out), nil
}
