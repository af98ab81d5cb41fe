package families

// mbart50CodeSuffix maps the 50 languages mBART-50 was trained on to the
// script/region suffix its tokenizer expects (e.g. "en" -> "en_XX").
var mbart50CodeSuffix = map[string]string{
	"ar": "AR", "cs": "CZ", "de": "DE", "en": "XX", "es": "XX",
	"et": "EE", "fi": "FI", "fr": "XX", "gu": "IN", "hi": "IN",
	"it": "IT", "ja": "XX", "kk": "KZ", "ko": "KR", "lt": "LT",
	"lv": "LV", "my": "MM", "ne": "NP", "nl": "XX", "ro": "RO",
	"ru": "RU", "si": "LK", "tr": "TR", "vi": "VN", "zh": "CN",
	"af": "ZA", "az": "AZ", "bn": "IN", "fa": "IR", "he": "IL",
	"hr": "HR", "id": "ID", "ka": "GE", "km": "KH", "mk": "MK",
	"ml": "IN", "mn": "MN", "mr": "IN", "pl": "PL", "ps": "AF",
	"pt": "XX", "sv": "SE", "sw": "KE", "ta": "IN", "te": "IN",
	"th": "TH", "tl": "XX", "uk": "UA", "ur": "PK", "xh": "ZA",
}

// mbart50Languages is the key set of mbart50CodeSuffix, built once.
var mbart50Languages = buildLanguageSet(mbart50CodeSuffix)

func buildLanguageSet(suffixes map[string]string) map[string]bool {
	set := make(map[string]bool, len(suffixes))
	for lang := range suffixes {
		set[lang] = true
	}
	return set
}

// m2m100Languages is the 100-language set M2M-100 was trained on.
var m2m100Languages = languageSetFromList([]string{
	"af", "am", "ar", "ast", "az", "ba", "be", "bg", "bn", "br",
	"bs", "ca", "ceb", "cs", "cy", "da", "de", "el", "en", "es",
	"et", "fa", "ff", "fi", "fr", "fy", "ga", "gd", "gl", "gu",
	"ha", "he", "hi", "hr", "ht", "hu", "hy", "id", "ig", "ilo",
	"is", "it", "ja", "jv", "ka", "kk", "km", "kn", "ko", "lb",
	"lg", "ln", "lo", "lt", "lv", "mg", "mk", "ml", "mn", "mr",
	"ms", "my", "ne", "nl", "no", "ns", "oc", "or", "pa", "pl",
	"ps", "pt", "ro", "ru", "sd", "si", "sk", "sl", "so", "sq",
	"sr", "ss", "su", "sv", "sw", "ta", "th", "tl", "tn", "tr",
	"uk", "ur", "uz", "vi", "wo", "xh", "yi", "yo", "zh", "zu",
})

func languageSetFromList(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}
