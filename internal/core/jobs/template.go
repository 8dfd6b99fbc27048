package jobs

import (
	"regexp"
	"strings"
	"sync"
)

// Library error messages are formatted strings, not stable identifiers. To
// recognize one we convert its localizable template into a wildcard pattern:
// literal segments are escaped, each positional placeholder becomes ".*".
// Both "{0}"-style and fmt-style ("%s", "%d", "%v", "%q") placeholders are
// supported.

var placeholderPattern = regexp.MustCompile(`\{\d+\}|%[sdvq]`)

var (
	templateMu    sync.Mutex
	templateCache = map[string]*regexp.Regexp{}
)

func templateRegexp(template string) *regexp.Regexp {
	templateMu.Lock()
	defer templateMu.Unlock()
	if re, ok := templateCache[template]; ok {
		return re
	}
	var b strings.Builder
	b.WriteString(`(?is)^`)
	last := 0
	for _, loc := range placeholderPattern.FindAllStringIndex(template, -1) {
		b.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		b.WriteString(`.*`)
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(template[last:]))
	b.WriteString(`$`)
	re := regexp.MustCompile(b.String())
	templateCache[template] = re
	return re
}

// matchesTemplate reports whether msg is an instance of the message template.
func matchesTemplate(template, msg string) bool {
	return templateRegexp(template).MatchString(msg)
}

// containsFold is a case-insensitive substring test.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
