package messaging

import (
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/cropguard/internal/detection"
)

const (
	callbackCorrect   = "correct"
	callbackIncorrect = "incorrect"

	captionTimeFormat  = "2006-01-02 15:04:05"
	documentTimeFormat = "02/01/2006 15:04"
)

const (
	// ExpiryNotice is sent when a request expires without an answer.
	ExpiryNotice = "⚠️ We did a detection, but you didn't choose if it's correct or not."
	// LateReplyText acknowledges an answer that arrived after the window closed.
	LateReplyText = "⌛ This detection has already expired."
)

// NewConfirmationRequest builds the request sent for a detection.
func NewConfirmationRequest(ev detection.Event, loc *time.Location) Request {
	if loc == nil {
		loc = time.Local
	}
	caption := fmt.Sprintf("🕵🏻‍♂️ Detected as: %s\n📆 Time and Date: %s\n⚠️ Is this information correct?",
		ev.Category, ev.Timestamp.In(loc).Format(captionTimeFormat))

	return Request{
		ImagePath: ev.Path,
		Caption:   caption,
		Actions: []Action{
			{Label: "❌ No", Data: CallbackData(false, ev.Category)},
			{Label: "✅ Yes", Data: CallbackData(true, ev.Category)},
		},
	}
}

// CallbackData encodes an answer as correct_<Category> or incorrect_<Category>.
func CallbackData(correct bool, c detection.Category) string {
	if correct {
		return callbackCorrect + "_" + string(c)
	}
	return callbackIncorrect + "_" + string(c)
}

// ParseCallbackData splits callback data into the verdict and the raw
// category name. The category is not validated here.
func ParseCallbackData(data string) (correct bool, category string, err error) {
	verdict, category, ok := strings.Cut(data, "_")
	if !ok || category == "" {
		return false, "", fmt.Errorf("malformed callback data %q", data)
	}
	switch verdict {
	case callbackCorrect:
		return true, category, nil
	case callbackIncorrect:
		return false, category, nil
	}
	return false, "", fmt.Errorf("unknown verdict in callback data %q", data)
}

// ThanksText is the acknowledgement for an answered request. It names the
// verdict the recipient chose.
func ThanksText(correct bool) string {
	verdict := callbackIncorrect
	if correct {
		verdict = callbackCorrect
	}
	return fmt.Sprintf("Thank you for confirming this detection as %s!", verdict)
}

// DocumentCaption prefixes a title with the current time.
func DocumentCaption(title string, now time.Time) string {
	return fmt.Sprintf("🕵🏻‍♂️ %s\n📆 %s", title, now.Format(documentTimeFormat))
}
