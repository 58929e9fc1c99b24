// Localized contact form templates.

package email

import "fmt"

// Locale represents a supported language code.
type Locale string

// Supported locales.
const (
	LocaleAR Locale = "ar"
	LocaleEN Locale = "en"
)

// DefaultLocale is used when no locale is specified or the locale is unsupported.
const DefaultLocale = LocaleAR

// ParseLocale converts a string to a Locale, returning DefaultLocale if unsupported.
func ParseLocale(s string) Locale {
	switch Locale(s) {
	case LocaleAR, LocaleEN:
		return Locale(s)
	default:
		return DefaultLocale
	}
}

type emailTemplates struct {
	// Sent to the site staff.
	ContactSubject string
	ContactBody    string

	// Sent back to the visitor.
	ReceiptSubject string
	ReceiptBody    string
}

var templates = map[Locale]*emailTemplates{
	LocaleAR: {
		ContactSubject: "رسالة جديدة من نموذج التواصل: %s",
		ContactBody: `الاسم: %s
البريد الإلكتروني: %s
الهاتف: %s

%s
`,
		ReceiptSubject: "تم استلام رسالتك",
		ReceiptBody: `مرحباً %s،

شكراً لتواصلك مع الهيئة. تم استلام رسالتك وسيتم الرد عليك في أقرب وقت.

رقم المرجع: %s
`,
	},
	LocaleEN: {
		ContactSubject: "New contact form message: %s",
		ContactBody: `Name: %s
Email: %s
Phone: %s

%s
`,
		ReceiptSubject: "We received your message",
		ReceiptBody: `Hi %s,

Thank you for contacting us. Your message was received and we will get back to you shortly.

Reference: %s
`,
	},
}

func getTemplates(locale Locale) *emailTemplates {
	if t, ok := templates[locale]; ok {
		return t
	}
	return templates[DefaultLocale]
}

// ContactEmail returns the subject and body forwarded to the staff.
func ContactEmail(locale Locale, subject, name, from, phone, message string) (string, string) {
	t := getTemplates(locale)
	return fmt.Sprintf(t.ContactSubject, subject), fmt.Sprintf(t.ContactBody, name, from, phone, message)
}

// ReceiptEmail returns the acknowledgement sent to the visitor.
func ReceiptEmail(locale Locale, name, reference string) (string, string) {
	t := getTemplates(locale)
	return t.ReceiptSubject, fmt.Sprintf(t.ReceiptBody, name, reference)
}
