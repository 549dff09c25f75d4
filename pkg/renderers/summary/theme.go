package summary

import (
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"
)

// rendererTheme is the theme data exposed to templates.
type rendererTheme struct {
	Name         string
	Variant      string
	Partials     map[string]string
	Tokens       map[string]string
	CSSVars      map[string]string
	CSSVarsStyle string
	Stylesheet   string
}

func buildThemeContext(cfg *theme.RendererConfig) rendererTheme {
	if cfg == nil {
		return rendererTheme{}
	}
	ctx := rendererTheme{
		Name:     cfg.Theme,
		Variant:  cfg.Variant,
		Partials: copyStringMap(cfg.Partials),
		Tokens:   copyStringMap(cfg.Tokens),
		CSSVars:  copyStringMap(cfg.CSSVars),
	}
	ctx.CSSVarsStyle = cssVarsStyle(ctx.CSSVars)
	if cfg.AssetURL != nil {
		ctx.Stylesheet = cfg.AssetURL("summary.css")
	}
	return ctx
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cssVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString("; ")
	}
	return strings.TrimSpace(b.String())
}

const defaultTemplate = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{ title }}</title>
{% if theme.Stylesheet %}<link rel="stylesheet" href="{{ theme.Stylesheet }}">{% endif %}
{% if theme.CSSVarsStyle %}<style>:root { {{ theme.CSSVarsStyle }} }</style>{% endif %}
</head>
<body class="summary{% if theme.Name %} theme-{{ theme.Name }}{% endif %}{% if theme.Variant %} theme-{{ theme.Variant }}{% endif %}" data-mode="{{ mode }}">
<h1>{{ title }}</h1>
<dl class="summary-rows">
{% for row in rows %}{% if row.Section %}<dt class="section depth-{{ row.Depth }}" data-path="{{ row.Path }}">{{ row.Label|safe }}</dt>
{% else %}<dt class="depth-{{ row.Depth }}" data-path="{{ row.Path }}">{{ row.Label|safe }}</dt>
<dd>{{ row.Value }}</dd>
{% for msg in row.Messages %}<dd class="issue">{{ msg }}</dd>
{% endfor %}{% endif %}{% endfor %}</dl>
</body>
</html>
`
