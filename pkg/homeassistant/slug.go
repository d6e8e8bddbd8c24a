package homeassistant

import "strings"

// Slugify turns a display name into an object id the way Home Assistant does:
// lower case, runs of anything but [a-z0-9] collapsed to a single underscore.
func Slugify(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "_")
	if slug == "" {
		return "unnamed"
	}
	return slug
}
