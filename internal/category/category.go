// Package category resolves a Download's destination directory and
// post-processing mode from its assigned category, per the category
// map in the config (name -> {destination, post_process?, scripts}).
package category

import "github.com/jvz-devx/usenet-dl-sub002/internal/domain"

// Rule is one configured category's routing.
type Rule struct {
	Name        string
	Destination string
	PostProcess *domain.PostProcess // nil defers to the download's own setting
	Scripts     []string
}

// Router resolves a category name to its Rule, falling back to a default
// destination for unmapped or empty categories.
type Router struct {
	Rules              map[string]Rule
	DefaultDestination string
}

// Resolve returns the destination directory and (if the category
// overrides it) the post-process mode for the named category.
func (r *Router) Resolve(categoryName string, fallback domain.PostProcess) (destination string, postProcess domain.PostProcess, scripts []string) {
	rule, ok := r.Rules[categoryName]
	if !ok {
		return r.DefaultDestination, fallback, nil
	}
	dest := rule.Destination
	if dest == "" {
		dest = r.DefaultDestination
	}
	pp := fallback
	if rule.PostProcess != nil {
		pp = *rule.PostProcess
	}
	return dest, pp, rule.Scripts
}
