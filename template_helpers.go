package authweb

import (
	"maps"

	"github.com/goliatone/go-auth-web/middleware/csrf"
	"github.com/goliatone/go-router"
)

// TemplateHelpers returns the values shared by every auth page. Register it
// as global template data on the view engine.
//
// In templates:
//
//	<input type="password" pattern="{{ password_pattern }}" title="{{ password_title }}">
//	{% for g in genders %}<option value="{{ g }}">{{ g|capfirst }}</option>{% endfor %}
//	{{ csrf_field|safe }}
func TemplateHelpers() map[string]any {
	genders := make([]string, 0, len(Genders))
	for _, g := range Genders {
		genders = append(genders, string(g))
	}

	helpers := map[string]any{
		"password_pattern":    PasswordInputPattern,
		"password_title":      PasswordInputTitle,
		"password_min_length": MinPasswordLength,
		"genders":             genders,
	}
	maps.Copy(helpers, csrf.Helpers("", "", ""))
	return helpers
}

// MergeTemplateData merges the request CSRF helpers into the template
// helpers stored in locals and returns data extended with the shared page
// values. Keys already present in data win.
func MergeTemplateData(ctx router.Context, data router.ViewContext) router.ViewContext {
	out := router.ViewContext{}
	maps.Copy(out, TemplateHelpers())

	requestHelpers := csrf.HelpersFromContext(ctx, csrf.DefaultContextKey)
	ctx.LocalsMerge(csrf.DefaultTemplateHelpersKey, requestHelpers)
	maps.Copy(out, requestHelpers)

	maps.Copy(out, data)
	return out
}
