package models

// Contact is an immutable snapshot of a prospect. Channel fields are optional;
// an empty value means the channel cannot reach the contact.
type Contact struct {
	ID         string            `json:"id"`
	FirstName  string            `json:"first_name"`
	LastName   string            `json:"last_name"`
	Email      string            `json:"email,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Company    string            `json:"company,omitempty"`
	Title      string            `json:"title,omitempty"`
	NetworkURL string            `json:"network_url,omitempty"`
	NetworkID  string            `json:"network_id,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// HasEmail reports whether the contact can be emailed.
func (c Contact) HasEmail() bool { return c.Email != "" }

// HasPhone reports whether the contact can be reached on chat.
func (c Contact) HasPhone() bool { return c.Phone != "" }

// HasNetworkProfile reports whether the contact has a professional-network profile.
func (c Contact) HasNetworkProfile() bool { return c.NetworkURL != "" || c.NetworkID != "" }

// ChannelConnection is the configured sending account of a channel.
// Config is passed verbatim to the channel's sender.
type ChannelConnection struct {
	Channel   Channel           `json:"channel"`
	Connected bool              `json:"connected"`
	Config    map[string]string `json:"config,omitempty"`
}
