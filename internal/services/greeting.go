package services

import (
	"math/rand/v2"
	"strings"

	"github.com/Ananth-NQI/outreach-engine/internal/config"
	"github.com/Ananth-NQI/outreach-engine/internal/models"
)

// Greeter composes the first message for a contact.
type Greeter struct {
	templates []string
	pick      func(n int) int
}

func NewGreeter(templates []string) *Greeter {
	return &Greeter{templates: templates, pick: rand.IntN}
}

// Greeting picks a template at random and fills in the display name, falling
// back to the handle when the name is blank.
func (g *Greeter) Greeting(contact models.Contact) string {
	if len(g.templates) == 0 {
		return ""
	}
	name := strings.TrimSpace(contact.DisplayName)
	if name == "" {
		name = contact.Handle
	}
	tmpl := g.templates[g.pick(len(g.templates))]
	return strings.ReplaceAll(tmpl, config.NamePlaceholder, name)
}
