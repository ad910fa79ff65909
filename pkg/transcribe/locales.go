package transcribe

// Locales is the fixed set of supported language/region codes.
var Locales = []string{
	"en-US",
	"de_DE",
	"fr_FR",
	"es_MX",
	"it_IT",
}

// LocaleSupported reports whether the locale is in the supported set.
func LocaleSupported(locale string) bool {
	for _, l := range Locales {
		if l == locale {
			return true
		}
	}
	return false
}
