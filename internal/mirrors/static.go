package mirrors

import (
	"context"
	"strings"

	"github.com/teamcutter/ipfilter/internal/domain"
)

// StaticProvider serves a fixed mirror list. Each mirror's ID is expanded
// into template wherever "{id}" appears.
type StaticProvider struct {
	name        string
	description string
	template    string
	mirrors     []domain.Mirror
}

func NewStatic(name, description, template string, mirrors ...domain.Mirror) *StaticProvider {
	return &StaticProvider{
		name:        name,
		description: description,
		template:    template,
		mirrors:     mirrors,
	}
}

func (p *StaticProvider) Name() string        { return p.name }
func (p *StaticProvider) Description() string { return p.description }

func (p *StaticProvider) Mirrors(_ context.Context) []domain.Mirror {
	out := make([]domain.Mirror, len(p.mirrors))
	copy(out, p.mirrors)
	return out
}

func (p *StaticProvider) URL(m domain.Mirror) string {
	return strings.ReplaceAll(p.template, "{id}", m.ID)
}

func DavidMoore() *StaticProvider {
	return NewStatic(
		"davidmoore",
		"Combined list published on GitHub",
		"https://github.com/DavidMoore/ipfilter/releases/download/lists/ipfilter.dat.gz",
		domain.Mirror{ID: "github", Name: "GitHub", Description: "GitHub release asset"},
	)
}

func EmuleSecurity() *StaticProvider {
	return NewStatic(
		"emule-security",
		"eMule Security",
		"http://upd.emule-security.org/ipfilter.zip",
		domain.Mirror{ID: "emule-security", Name: "emule-security.org"},
	)
}

func Blocklist() *StaticProvider {
	return NewStatic(
		"blocklist",
		"I-Blocklist",
		"http://list.iblocklist.com/?list={id}&fileformat=p2p&archiveformat=gz",
		domain.Mirror{ID: "bt_level1", Name: "Level 1", Description: "Companies and organisations involved in anti-P2P activity"},
		domain.Mirror{ID: "bt_level2", Name: "Level 2", Description: "General corporate ranges"},
		domain.Mirror{ID: "bt_level3", Name: "Level 3", Description: "Many portal-type websites and ISP ranges"},
		domain.Mirror{ID: "bt_templist", Name: "Bad Peers", Description: "Peers reported for bad behaviour"},
		domain.Mirror{ID: "bt_spyware", Name: "Spyware", Description: "Known malicious spyware and adware"},
	)
}
