package trigger

import (
	"strings"

	"github.com/nudgeworks/nudge-go/internal/datastore"
)

// fallbackName is substituted for {{firstName}} and {{name}} when the user
// never completed their profile, keeping the message grammatical.
const fallbackName = "there"

// Personalize substitutes {{firstName}}, {{lastName}} and {{name}}
// placeholders in a message template with the user's profile fields.
// Missing first names fall back to "there", missing last names to the empty
// string. A nil user personalizes as an anonymous recipient.
func Personalize(template string, user *datastore.User) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	firstName := fallbackName
	lastName := ""
	name := fallbackName
	if user != nil {
		if user.FirstName != "" {
			firstName = user.FirstName
		}
		lastName = user.LastName
		if full := user.FullName(); full != "" {
			name = full
		}
	}

	return strings.NewReplacer(
		"{{firstName}}", firstName,
		"{{lastName}}", lastName,
		"{{name}}", name,
	).Replace(template)
}
