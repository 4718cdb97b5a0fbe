package assets

import (
	"regexp"
	"strings"
)

// relativeImport matches `from './x'` and `from"./x"` in both formatted and
// minified script text. The quote on each side must agree.
var relativeImport = regexp.MustCompile(`\bfrom(\s*)(?:'\./([^'\s]+)'|"\./([^"\s]+)")`)

// RewriteImports rewrites every relative module reference of the form
// from './X' to an absolute reference rooted at base, keeping the original
// spacing and quote character. It returns the rewritten text and the number
// of rewrites; a script with no relative references is returned unchanged.
func RewriteImports(script, base string) (string, int) {
	base = strings.TrimSuffix(base, "/")
	count := 0
	out := relativeImport.ReplaceAllStringFunc(script, func(match string) string {
		sub := relativeImport.FindStringSubmatch(match)
		quote, name := "'", sub[2]
		if name == "" {
			quote, name = `"`, sub[3]
		}
		count++
		return "from" + sub[1] + quote + base + "/" + name + quote
	})
	return out, count
}

// RelativeImports lists the distinct module names referenced through
// from './X', in order of first appearance.
func RelativeImports(script string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, sub := range relativeImport.FindAllStringSubmatch(script, -1) {
		name := sub[2]
		if name == "" {
			name = sub[3]
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
