// Package template renders contact variables into outbound message templates.
package template

import (
	"regexp"
	"strings"

	"github.com/dukex/cadence/pkg/models"
)

// placeholderPattern matches {{name}} and {{name|fallback}} with optional inner spaces.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*(?:\|([^}]*))?\}\}`)

// Variables returns the values addressable from a template for contact.
// Both snake_case and camelCase names are accepted; custom fields are
// available by their own key and under "custom.".
func Variables(contact models.Contact) map[string]string {
	vars := map[string]string{
		"first_name":  contact.FirstName,
		"last_name":   contact.LastName,
		"full_name":   contact.FullName(),
		"name":        contact.FullName(),
		"email":       contact.Email,
		"phone":       contact.Phone,
		"company":     contact.Company,
		"title":       contact.Title,
		"network_url": contact.NetworkURL,
	}

	for key, value := range contact.Custom {
		vars["custom."+key] = value

		if _, exists := vars[key]; !exists {
			vars[key] = value
		}
	}

	for key, value := range vars {
		if camel := toCamel(key); camel != key {
			if _, exists := vars[camel]; !exists {
				vars[camel] = value
			}
		}
	}

	return vars
}

// Render substitutes the contact's fields into tmpl. A placeholder whose value
// is empty or unknown renders its fallback, or nothing when none is given.
func Render(tmpl string, contact models.Contact) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return RenderVariables(tmpl, Variables(contact))
}

// RenderVariables substitutes vars into tmpl.
func RenderVariables(tmpl string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)

		if value := vars[groups[1]]; value != "" {
			return value
		}

		return strings.TrimSpace(groups[2])
	})
}

func toCamel(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}

	parts := strings.Split(key, "_")

	var builder strings.Builder

	builder.WriteString(parts[0])

	for _, part := range parts[1:] {
		if part == "" {
			continue
		}

		builder.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}

	return builder.String()
}
