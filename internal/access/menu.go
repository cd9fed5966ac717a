package access

type Capability string

const (
	CapabilityAnonymous     Capability = "anonymous"
	CapabilityAuthenticated Capability = "authenticated"
	CapabilityAdmin         Capability = "admin"
)

type MenuAction string

const (
	MenuLogin    MenuAction = "login"
	MenuNewPost  MenuAction = "new_post"
	MenuSettings MenuAction = "settings"
	MenuHelp     MenuAction = "help"
	MenuSignOut  MenuAction = "sign_out"
)

type MenuItem struct {
	Capability Capability `json:"capability"`
	Label      string     `json:"label"`
	Action     MenuAction `json:"action"`
	Href       string     `json:"href,omitempty"`
}

var menuItems = []MenuItem{
	{Capability: CapabilityAnonymous, Label: "Login", Action: MenuLogin, Href: "/signin"},
	{Capability: CapabilityAdmin, Label: "New Post", Action: MenuNewPost, Href: "/new"},
	{Capability: CapabilityAuthenticated, Label: "Settings", Action: MenuSettings, Href: "/settings"},
	{Capability: CapabilityAuthenticated, Label: "Help", Action: MenuHelp, Href: "/help"},
	{Capability: CapabilityAuthenticated, Label: "Sign Out", Action: MenuSignOut},
}

// Capabilities derives the capability set held by a subject.
func (g Gate) Capabilities(s Subject) map[Capability]bool {
	if s.Anonymous() {
		return map[Capability]bool{CapabilityAnonymous: true}
	}
	caps := map[Capability]bool{CapabilityAuthenticated: true}
	if g.IsAdmin(s) {
		caps[CapabilityAdmin] = true
	}
	return caps
}

func (g Gate) Menu(s Subject) []MenuItem {
	caps := g.Capabilities(s)
	items := make([]MenuItem, 0, len(menuItems))
	for _, item := range menuItems {
		if caps[item.Capability] {
			items = append(items, item)
		}
	}
	return items
}
