package dispatch

import (
	"fmt"
	"strings"
)

// Reply templates. Exactly one of these is produced per inbound message.
const (
	replyClarifyAmount = "Okay, I see you want to add an expense, but I couldn't find the amount. Can you please include it?"
	replyReportStub    = "Report generation is not implemented yet."
	replyLimitStub     = "Setting spending limits is not implemented yet."
	replyUnknown       = "Sorry, I didn't understand that. You can tell me about expenses like 'Paid $10 for coffee' or ask for a 'report'."
	replyTextError     = "Sorry, there was an error trying to understand your message."
	replyMediaError    = "Sorry, there was an error processing the media file."

	replyNoExpenseInImageFallback = "I looked at the image, but I couldn't find an expense in it."
)

func replyLogged(amount float64, description, category string) string {
	return fmt.Sprintf("✅ Logged: %.2f for %s (Category: %s).", amount, description, category)
}

func replyGreeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! How can I help you track your spending today?", name)
}

func replyUnsupportedMedia(contentType string) string {
	return fmt.Sprintf("Received media (%s), but I can only process images and audio for now.", contentType)
}

func replyTranscriptOnly(transcript string) string {
	return fmt.Sprintf("I heard: \"%s\", but I couldn't find an expense in it.", transcript)
}

// replyClarifyAmountHeard echoes what was transcribed so the sender can see
// what got through before being asked for the missing amount.
func replyClarifyAmountHeard(transcript string) string {
	return fmt.Sprintf("I heard: \"%s\". It sounds like an expense, but I couldn't find the amount. Can you please include it?", transcript)
}

// replyNoExpenseInImage prefers the extraction service's own explanation of
// why the image yielded nothing, falling back to a generic line.
func replyNoExpenseInImage(message string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return replyNoExpenseInImageFallback
}
