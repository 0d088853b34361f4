package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nudgeworks/nudge-go/internal/datastore"
)

func TestPersonalize(t *testing.T) {
	user := &datastore.User{ID: "u1", FirstName: "Asta", LastName: "Virtanen"}

	assert.Equal(t, "Hi Asta, keep your streak!",
		Personalize("Hi {{firstName}}, keep your streak!", user))
	assert.Equal(t, "Dear Asta Virtanen",
		Personalize("Dear {{name}}", user))
	assert.Equal(t, "Virtanen",
		Personalize("{{lastName}}", user))
}

func TestPersonalizeMissingFirstName(t *testing.T) {
	user := &datastore.User{ID: "u1"}

	assert.Equal(t, "Hi there, keep your streak!",
		Personalize("Hi {{firstName}}, keep your streak!", user))
	assert.Equal(t, "Dear there",
		Personalize("Dear {{name}}", user))
	assert.Equal(t, "Bye ",
		Personalize("Bye {{lastName}}", user))
}

func TestPersonalizeNilUser(t *testing.T) {
	assert.Equal(t, "Hi there", Personalize("Hi {{firstName}}", nil))
}

func TestPersonalizeNoPlaceholders(t *testing.T) {
	assert.Equal(t, "Plain message", Personalize("Plain message", nil))
}

func TestPersonalizeLastNameOnly(t *testing.T) {
	user := &datastore.User{ID: "u1", LastName: "Virtanen"}

	assert.Equal(t, "Dear Virtanen", Personalize("Dear {{name}}", user))
	assert.Equal(t, "Hi there", Personalize("Hi {{firstName}}", user))
}
