package workflow

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// LabelCatalog maps (role, action) to button text. The manager's "Approve"
// button performs ActionAuthorize.
type LabelCatalog struct {
	defaults map[Action]labelEntry
	byRole   map[Role]map[Action]labelEntry
}

type labelEntry struct {
	Label string `yaml:"label"`
	Tone  string `yaml:"tone"`
}

type labelFile struct {
	Actions map[string]labelEntry            `yaml:"actions"`
	Roles   map[string]map[string]labelEntry `yaml:"roles"`
}

func newDefaultCatalog() *LabelCatalog {
	return &LabelCatalog{
		defaults: map[Action]labelEntry{
			ActionAuthorize: {Label: "Authorize", Tone: "primary"},
			ActionApprove:   {Label: "Approve", Tone: "success"},
			ActionReject:    {Label: "Reject", Tone: "danger"},
			ActionMarkPaid:  {Label: "Mark as Paid", Tone: "payout"},
		},
		byRole: map[Role]map[Action]labelEntry{
			RoleManager: {
				ActionAuthorize: {Label: "Approve", Tone: "primary"},
			},
		},
	}
}

var defaultCatalog = newDefaultCatalog()

// DefaultLabels returns the built-in catalog. It is shared; use Clone before
// overlaying.
func DefaultLabels() *LabelCatalog {
	return defaultCatalog
}

func (c *LabelCatalog) Clone() *LabelCatalog {
	out := &LabelCatalog{
		defaults: make(map[Action]labelEntry, len(c.defaults)),
		byRole:   make(map[Role]map[Action]labelEntry, len(c.byRole)),
	}
	for a, e := range c.defaults {
		out.defaults[a] = e
	}
	for r, entries := range c.byRole {
		m := make(map[Action]labelEntry, len(entries))
		for a, e := range entries {
			m[a] = e
		}
		out.byRole[r] = m
	}
	return out
}

// Label resolves the text for role performing action: role entry, then the
// action default, then the action name.
func (c *LabelCatalog) Label(role Role, action Action) ActionLabel {
	if entries, ok := c.byRole[role]; ok {
		if e, ok := entries[action]; ok {
			return c.withDefaultTone(action, e)
		}
	}
	if e, ok := c.defaults[action]; ok {
		return ActionLabel{Action: action, Label: e.Label, Tone: e.Tone}
	}
	return ActionLabel{Action: action, Label: string(action)}
}

func (c *LabelCatalog) withDefaultTone(action Action, e labelEntry) ActionLabel {
	if e.Tone == "" {
		e.Tone = c.defaults[action].Tone
	}
	if e.Label == "" {
		e.Label = c.defaults[action].Label
	}
	return ActionLabel{Action: action, Label: e.Label, Tone: e.Tone}
}

// ActionLabels labels every action role may take in state.
func (c *LabelCatalog) ActionLabels(role Role, state State) []ActionLabel {
	actions := PermittedActions(role, state)
	if len(actions) == 0 {
		return nil
	}
	out := make([]ActionLabel, 0, len(actions))
	for _, a := range actions {
		out = append(out, c.Label(role, a))
	}
	return out
}

// LoadLabels overlays a YAML label file on the default catalog:
//
//	actions:
//	  mark_paid: {label: "Release payout"}
//	roles:
//	  manager:
//	    authorize: {label: "Sign off"}
func LoadLabels(r io.Reader) (*LabelCatalog, error) {
	var file labelFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode labels: %w", err)
	}

	catalog := DefaultLabels().Clone()
	for rawAction, entry := range file.Actions {
		action, err := ParseAction(rawAction)
		if err != nil {
			return nil, fmt.Errorf("labels.actions: %w", err)
		}
		base := catalog.defaults[action]
		if strings.TrimSpace(entry.Label) != "" {
			base.Label = strings.TrimSpace(entry.Label)
		}
		if entry.Tone != "" {
			base.Tone = entry.Tone
		}
		catalog.defaults[action] = base
	}
	for rawRole, entries := range file.Roles {
		role, err := NormalizeRole(rawRole, false)
		if err != nil {
			return nil, fmt.Errorf("labels.roles: %w", err)
		}
		if catalog.byRole[role] == nil {
			catalog.byRole[role] = map[Action]labelEntry{}
		}
		for rawAction, entry := range entries {
			action, err := ParseAction(rawAction)
			if err != nil {
				return nil, fmt.Errorf("labels.roles.%s: %w", role, err)
			}
			base := catalog.byRole[role][action]
			if label := strings.TrimSpace(entry.Label); label != "" {
				base.Label = label
			}
			if entry.Tone != "" {
				base.Tone = entry.Tone
			}
			catalog.byRole[role][action] = base
		}
	}
	return catalog, nil
}
