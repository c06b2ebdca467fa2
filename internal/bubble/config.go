// Package bubble implements the bubble state and config-merge rules (C3)
// together with the session, session store, and conversation index (C4,
// C5). They live in one package because a Bubble is never meaningful
// without its owning Session and the two would otherwise import each other.
package bubble

import (
	"fmt"

	"bubblestream/internal/apierror"
)

// Config is the structured, recognized-plus-free-form config map attached
// to a Bubble. It never holds role/type directly; those are separate
// Bubble fields that travel alongside a Config patch on the wire.
type Config map[string]any

var forbiddenKeys = []string{"id", "config", "colors"}

func validateExtra(extra map[string]any) error {
	for _, key := range forbiddenKeys {
		if _, ok := extra[key]; ok {
			return apierror.NewInvalidConfig(fmt.Sprintf("extra must not contain %q", key))
		}
	}
	return nil
}

// cloneConfig performs a defensive deep-enough copy: top level plus one
// level into "colors", which is all the merge rule ever touches structurally.
func cloneConfig(c Config) Config {
	out := make(Config, len(c))
	for k, v := range c {
		if k == "colors" {
			if group, ok := v.(map[string]any); ok {
				out[k] = cloneColorGroups(group)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func cloneColorGroups(groups map[string]any) map[string]any {
	out := make(map[string]any, len(groups))
	for group, fields := range groups {
		if m, ok := fields.(map[string]any); ok {
			cp := make(map[string]any, len(m))
			for k, v := range m {
				cp[k] = v
			}
			out[group] = cp
			continue
		}
		out[group] = fields
	}
	return out
}

// mergeColorGroups implements the two-level merge rule from spec.md §4.2:
// for each sub-key in the patch's colors (bubble, header, ...), if both
// sides are maps, shallow-merge with the patch winning on conflicts;
// otherwise replace wholesale.
func mergeColorGroups(current, patch map[string]any) map[string]any {
	result := cloneColorGroups(current)
	for group, patchFieldsAny := range patch {
		patchFields, patchIsMap := patchFieldsAny.(map[string]any)
		currentFieldsAny, exists := result[group]
		currentFields, currentIsMap := currentFieldsAny.(map[string]any)
		if patchIsMap && exists && currentIsMap {
			merged := make(map[string]any, len(currentFields)+len(patchFields))
			for k, v := range currentFields {
				merged[k] = v
			}
			for k, v := range patchFields {
				merged[k] = v
			}
			result[group] = merged
		} else {
			result[group] = patchFieldsAny
		}
	}
	return result
}

// applyPatch returns the config that results from applying patch to
// current, following the color two-level merge and top-level replace rule.
// patch is assumed pre-filtered: no "auto" sentinels, no absent-meaning
// keys — every key present in patch is meant to take effect.
func applyPatch(current, patch Config) Config {
	merged := cloneConfig(current)
	for k, v := range patch {
		if k == "colors" {
			currentColors, _ := merged["colors"].(map[string]any)
			patchColors, _ := v.(map[string]any)
			merged["colors"] = mergeColorGroups(currentColors, patchColors)
			continue
		}
		merged[k] = v
	}
	return merged
}

// Patch is the result of building a flat-parameter call into the nested
// form: role/type (which live on the Bubble, not Config) plus the Config
// delta to merge.
type Patch struct {
	Role   *string
	Type   *string
	Config Config
}

// Empty reports whether the patch carries nothing at all — in which case
// no config frame should be emitted.
func (p Patch) Empty() bool {
	return p.Role == nil && p.Type == nil && len(p.Config) == 0
}

// WireMap flattens a Patch into the map shape emitted on the wire as a
// config frame's "patch" field: role/type folded in alongside the config
// delta when present.
func (p Patch) WireMap() map[string]any {
	out := make(map[string]any, len(p.Config)+2)
	for k, v := range p.Config {
		out[k] = v
	}
	if p.Role != nil {
		out["role"] = *p.Role
	}
	if p.Type != nil {
		out["type"] = *p.Type
	}
	return out
}

// optString represents a tri-state string parameter: absent (the Option
// was never called), present with a value, or present-but-null (explicit
// hide, per spec.md's "null hides" rule for name/icon/collapsible_title).
type optString struct {
	value *string
}

// patchParams accumulates flat-parameter Option calls before Build.
type patchParams struct {
	role, kind                           *string
	name, icon, collapsibleTitle         *optString
	collapsible, collapsibleByDefault    *bool
	collapsibleMaxHeight                 *any
	colors                               map[string]map[string]string
	extra                                map[string]any
}

func (p *patchParams) setColor(group, field, value string) {
	// "auto" means "no change": the key is left out of the patch.
	if value == "auto" {
		return
	}
	if p.colors == nil {
		p.colors = map[string]map[string]string{}
	}
	if p.colors[group] == nil {
		p.colors[group] = map[string]string{}
	}
	p.colors[group][field] = value
}

// Option mutates flat bubble-construction/config parameters. Options are
// applied left to right, so a later Option overrides an earlier one.
type Option func(*patchParams)

func WithRole(role string) Option { return func(p *patchParams) { p.role = &role } }
func WithType(kind string) Option { return func(p *patchParams) { p.kind = &kind } }

func WithName(name string) Option {
	return func(p *patchParams) { p.name = &optString{value: &name} }
}

// WithNameHidden explicitly sets name to null, hiding it.
func WithNameHidden() Option { return func(p *patchParams) { p.name = &optString{} } }

func WithIcon(icon string) Option {
	return func(p *patchParams) { p.icon = &optString{value: &icon} }
}

func WithIconHidden() Option { return func(p *patchParams) { p.icon = &optString{} } }

func WithCollapsibleTitle(title string) Option {
	return func(p *patchParams) { p.collapsibleTitle = &optString{value: &title} }
}

func WithCollapsibleTitleHidden() Option {
	return func(p *patchParams) { p.collapsibleTitle = &optString{} }
}

// WithCollapsible sets collapsible, and — matching the original toolkit's
// behavior — implicitly sets collapsible_by_default to the same value
// unless an earlier Option already set collapsible_by_default; a later
// WithCollapsibleByDefault overrides the implied value.
func WithCollapsible(v bool) Option {
	return func(p *patchParams) {
		p.collapsible = &v
		if p.collapsibleByDefault == nil {
			def := v
			p.collapsibleByDefault = &def
		}
	}
}

func WithCollapsibleByDefault(v bool) Option {
	return func(p *patchParams) { p.collapsibleByDefault = &v }
}

func WithCollapsibleMaxHeight(v any) Option {
	return func(p *patchParams) { p.collapsibleMaxHeight = &v }
}

func WithBubbleBgColor(v string) Option     { return func(p *patchParams) { p.setColor("bubble", "bg", v) } }
func WithBubbleTextColor(v string) Option   { return func(p *patchParams) { p.setColor("bubble", "text", v) } }
func WithBubbleBorderColor(v string) Option { return func(p *patchParams) { p.setColor("bubble", "border", v) } }

func WithHeaderBgColor(v string) Option     { return func(p *patchParams) { p.setColor("header", "bg", v) } }
func WithHeaderTextColor(v string) Option   { return func(p *patchParams) { p.setColor("header", "text", v) } }
func WithHeaderBorderColor(v string) Option { return func(p *patchParams) { p.setColor("header", "border", v) } }
func WithHeaderIconBgColor(v string) Option {
	return func(p *patchParams) { p.setColor("header", "iconBg", v) }
}
func WithHeaderIconTextColor(v string) Option {
	return func(p *patchParams) { p.setColor("header", "iconText", v) }
}

// WithExtra folds arbitrary forwarded fields into the top level of the
// config patch. Forbidden keys (id, config, colors) raise InvalidConfig
// when the patch is built.
func WithExtra(extra map[string]any) Option {
	return func(p *patchParams) { p.extra = extra }
}

func buildPatch(opts []Option) (Patch, error) {
	p := &patchParams{}
	for _, opt := range opts {
		opt(p)
	}

	cfg := Config{}
	if p.name != nil {
		cfg["name"] = optStringValue(p.name)
	}
	if p.icon != nil {
		cfg["icon"] = optStringValue(p.icon)
	}
	if p.collapsibleTitle != nil {
		cfg["collapsible_title"] = optStringValue(p.collapsibleTitle)
	}
	if p.collapsible != nil {
		cfg["collapsible"] = *p.collapsible
	}
	if p.collapsibleByDefault != nil {
		cfg["collapsible_by_default"] = *p.collapsibleByDefault
	}
	if p.collapsibleMaxHeight != nil {
		cfg["collapsible_max_height"] = *p.collapsibleMaxHeight
	}
	if len(p.colors) > 0 {
		colors := make(map[string]any, len(p.colors))
		for group, fields := range p.colors {
			f := make(map[string]any, len(fields))
			for k, v := range fields {
				f[k] = v
			}
			colors[group] = f
		}
		cfg["colors"] = colors
	}
	if p.extra != nil {
		if err := validateExtra(p.extra); err != nil {
			return Patch{}, err
		}
		for k, v := range p.extra {
			cfg[k] = v
		}
	}

	return Patch{Role: p.role, Type: p.kind, Config: cfg}, nil
}

func optStringValue(o *optString) any {
	if o.value == nil {
		return nil
	}
	return *o.value
}
