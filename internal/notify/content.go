package notify

import (
	"fmt"
	"strings"

	"github.com/oggyb/guestmatch/internal/db"
)

// compose renders the title, body and deep link for kind.
func compose(kind string, r *Recipient, appURL string, data map[string]string) Message {
	event := r.EventName
	if event == "" {
		event = "the wedding"
	}
	base := strings.TrimRight(appURL, "/")

	msg := Message{Kind: kind, Data: map[string]string{"type": kind}}
	for k, v := range data {
		msg.Data[k] = v
	}

	switch kind {
	case db.NotifyLike:
		msg.Title = "Someone likes you 💌"
		msg.Body = fmt.Sprintf("A guest at %s liked your profile. Open the app to see who.", event)
		msg.Link = base + "/liked-you"
	case db.NotifyMatch:
		msg.Title = "It's a match!"
		msg.Body = fmt.Sprintf("You and another guest at %s liked each other. Say hello!", event)
		msg.Link = base + "/matches"
		if id := data["match_id"]; id != "" {
			msg.Link = base + "/matches/" + id
		}
	case db.NotifyReport:
		msg.Title = "A guest was reported"
		msg.Body = fmt.Sprintf("A guest at %s filed a report (%s). Please review it.", event, data["reason"])
		msg.Link = base + "/admin/reports"
	default:
		msg.Title = "Guest Match"
		msg.Body = "You have a new notification."
		msg.Link = base
	}
	return msg
}
