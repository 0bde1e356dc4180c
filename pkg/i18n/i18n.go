// Package i18n holds the user-facing messages of the HTTP surface and picks
// a language for each request.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyTooManyRequests  = "throttle.tooManyRequests"
	KeyTooManyFiles     = "upload.tooManyFiles"
	KeyTooManyFields    = "upload.tooManyFields"
	KeyFileTooLarge     = "upload.fileTooLarge"
	KeyInvalidMultipart = "upload.invalidMultipart"
	KeyNotFound         = "http.notFound"
	KeyUnauthorized     = "http.unauthorized"
)

var (
	simplifiedChinese  = language.MustParse("zh-CN")
	traditionalChinese = language.MustParse("zh-TW")
)

// messages is indexed by the supported tag, in matcher preference order.
var messages = []struct {
	tag     language.Tag
	entries map[string]string
}{
	{
		tag: language.English,
		entries: map[string]string{
			KeyTooManyRequests:  "Too many requests, please try again later.",
			KeyTooManyFiles:     "Too many files, at most %d allowed.",
			KeyTooManyFields:    "Too many fields, at most %d allowed.",
			KeyFileTooLarge:     "File %q exceeds the maximum size of %d bytes.",
			KeyInvalidMultipart: "The request is not a valid multipart form.",
			KeyNotFound:         "Not found.",
			KeyUnauthorized:     "A valid bearer token is required.",
		},
	},
	{
		tag: simplifiedChinese,
		entries: map[string]string{
			KeyTooManyRequests:  "当前操作过于频繁，请稍后再试！",
			KeyTooManyFiles:     "文件数量过多，最多允许 %d 个。",
			KeyTooManyFields:    "字段数量过多，最多允许 %d 个。",
			KeyFileTooLarge:     "文件 %q 超过最大限制 %d 字节。",
			KeyInvalidMultipart: "请求不是有效的 multipart 表单。",
			KeyNotFound:         "资源不存在。",
			KeyUnauthorized:     "需要有效的访问令牌。",
		},
	},
	{
		tag: traditionalChinese,
		entries: map[string]string{
			KeyTooManyRequests:  "當前操作過於頻繁，請稍後再試！",
			KeyTooManyFiles:     "檔案數量過多，最多允許 %d 個。",
			KeyTooManyFields:    "欄位數量過多，最多允許 %d 個。",
			KeyFileTooLarge:     "檔案 %q 超過最大限制 %d 位元組。",
			KeyInvalidMultipart: "請求不是有效的 multipart 表單。",
			KeyNotFound:         "資源不存在。",
			KeyUnauthorized:     "需要有效的存取權杖。",
		},
	},
}

// Translator resolves message keys for a negotiated language.
type Translator struct {
	catalog   *catalog.Builder
	matcher   language.Matcher
	supported []language.Tag
	fallback  language.Tag
}

// New creates a translator. Requests that express no usable preference are
// answered in the supported language closest to fallback.
func New(fallback language.Tag) *Translator {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	supported := make([]language.Tag, 0, len(messages))

	for _, m := range messages {
		supported = append(supported, m.tag)

		for key, msg := range m.entries {
			// Keys and messages are static; SetString only fails on malformed tags.
			_ = b.SetString(m.tag, key, msg)
		}
	}

	t := &Translator{
		catalog:   b,
		matcher:   language.NewMatcher(supported),
		supported: supported,
	}

	t.fallback = t.closest(fallback)

	return t
}

// Fallback returns the language used when negotiation fails.
func (t *Translator) Fallback() language.Tag {
	return t.fallback
}

// Match negotiates a supported language from an Accept-Language header.
func (t *Translator) Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return t.fallback
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return t.fallback
	}

	_, idx, confidence := t.matcher.Match(tags...)
	if confidence == language.No {
		return t.fallback
	}

	return t.supported[idx]
}

// Sprintf renders key in tag.
func (t *Translator) Sprintf(tag language.Tag, key string, args ...any) string {
	return message.NewPrinter(tag, message.Catalog(t.catalog)).Sprintf(key, args...)
}

// Localize renders key in the language negotiated from acceptLanguage.
func (t *Translator) Localize(acceptLanguage, key string, args ...any) string {
	return t.Sprintf(t.Match(acceptLanguage), key, args...)
}

func (t *Translator) closest(tag language.Tag) language.Tag {
	_, idx, confidence := t.matcher.Match(tag)
	if confidence == language.No {
		return language.English
	}

	return t.supported[idx]
}
