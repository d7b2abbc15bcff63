package main

import (
	"os"
	"strings"
)

// utf8LocaleEnv checks the effective locale (LC_ALL beats LC_CTYPE beats
// LANG) and, when it isn't UTF-8, returns env overrides forcing one for
// the child. Interactive programs misrender multibyte output under a C
// locale.
func utf8LocaleEnv() []string {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		if isUTF8Locale(v) {
			return nil
		}
		break
	}
	return []string{"LANG=C.UTF-8", "LC_ALL=C.UTF-8"}
}

func isUTF8Locale(v string) bool {
	v = strings.ToLower(v)
	return strings.Contains(v, "utf-8") || strings.Contains(v, "utf8")
}
