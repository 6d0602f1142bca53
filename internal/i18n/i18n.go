// Package i18n resolves message keys to human-readable text.
// The catalog currently carries en-US only; the lookup API keeps the
// language parameter so additional catalogs slot in without touching
// callers.
package i18n

import "sync"

// Supported languages.
const (
	LangEnUS = "en-US"
)

var (
	instance *I18n
	once     sync.Once

	translations = map[string]map[string]string{
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal Server Error",
			"invalid_params":        "Invalid Parameters",
			"unauthorized":          "Unauthorized",
			"forbidden":             "Forbidden",
			"not_found":             "Resource Not Found",
			"conflict":              "Conflict",

			"file_not_found":     "File Not Found",
			"file_already_indexed": "File Already Indexed",
			"file_read_failed":   "File Read Failed",
			"file_write_failed":  "File Write Failed",
			"reindex_in_progress": "Reindex Already In Progress",
			"reindex_failed":     "Reindex Failed",

			"account_not_found":      "Account Does Not Exist",
			"account_exists":         "Account Already Exists",
			"username_reserved":      "This Username Is Reserved",
			"username_invalid":       "Invalid Username",
			"password_wrong":         "Wrong Password",
			"token_missing":          "Missing Token",
			"token_invalid":          "Invalid Or Expired Token",

			"changes_query_failed":  "Change Feed Query Failed",
			"changes_record_failed": "Change Feed Append Failed",

			"thumbnail_not_found":     "Thumbnail Not Found",
			"thumbnail_failed":        "Thumbnail Generation Failed",
			"thumbnail_unsupported":   "Unsupported Thumbnail Source",

			"mirror_config_not_found":       "Mirror Config Not Found",
			"mirror_config_invalid":         "Mirror Config Invalid",
			"mirror_provider_not_supported": "Mirror Provider Not Supported",
			"mirror_sync_failed":            "Mirror Sync Failed",

			"unknown_error": "Unknown Error",
		},
	}
)

// I18n owns the catalog and the default language.
type I18n struct {
	defaultLang string
}

// GetInstance returns the process-wide catalog.
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{defaultLang: LangEnUS}
	})
	return instance
}

// GetDefaultLanguage returns the fallback language code.
func (i *I18n) GetDefaultLanguage() string {
	return i.defaultLang
}

// Translate resolves key in lang, falling back to the default language and
// finally to the key itself so a missing entry stays visible.
func (i *I18n) Translate(key, lang string) string {
	if catalog, ok := translations[lang]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if lang != i.defaultLang {
		if msg, ok := translations[i.defaultLang][key]; ok {
			return msg
		}
	}
	return key
}
