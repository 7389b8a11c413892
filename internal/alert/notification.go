package alert

import (
	"fmt"
	"strings"

	"github.com/dustguard/dustguard/internal/risk"
)

// Subscription is a Web Push endpoint the delivery service sends to.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Notification is the message handed to a Notifier.
type Notification struct {
	UserID        string         `json:"userId"`
	Kind          Kind           `json:"kind"`
	Value         float64        `json:"value"`
	Scale         risk.ScaleName `json:"scale"`
	Category      risk.Category  `json:"category"`
	Previous      *float64       `json:"previous,omitempty"`
	Date          string         `json:"date"`
	Locale        string         `json:"locale"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Subscriptions []Subscription `json:"subscriptions"`
}

type message struct {
	title string
	body  string
}

var messages = map[string]map[Kind]message{
	"en": {
		KindEmergency: {"Dust emergency", "Your risk index is %s. Stay indoors, keep windows closed and use your inhaler or medication as prescribed."},
		KindUrgent:    {"High dust risk", "Your risk index is %s. Limit time outdoors and wear a mask if you go out."},
		KindRising:    {"Dust risk rising", "Your risk index rose to %s. Consider reducing outdoor activity today."},
	},
	"ar": {
		KindEmergency: {"طوارئ الغبار", "مؤشر الخطر لديك %s. ابقَ في الداخل وأغلق النوافذ واستخدم دواءك حسب الوصفة."},
		KindUrgent:    {"خطر غبار مرتفع", "مؤشر الخطر لديك %s. قلل الوقت في الخارج وارتدِ كمامة عند الخروج."},
		KindRising:    {"ارتفاع خطر الغبار", "ارتفع مؤشر الخطر لديك إلى %s. فكّر في تقليل النشاط الخارجي اليوم."},
	},
}

// DefaultLocale is used when the requested locale has no messages.
const DefaultLocale = "en"

// Localize fills Title and Body for n.Kind in n.Locale.
func (n *Notification) Localize() {
	locale := strings.ToLower(n.Locale)
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	table, ok := messages[locale]
	if !ok {
		locale, table = DefaultLocale, messages[DefaultLocale]
	}
	n.Locale = locale

	m := table[n.Kind]
	n.Title = m.title
	n.Body = fmt.Sprintf(m.body, formatValue(n.Value, n.Scale))
}

func formatValue(v float64, scale risk.ScaleName) string {
	if scale == risk.ScaleWeighted {
		return fmt.Sprintf("%.0f/100", v)
	}
	return fmt.Sprintf("%.1f/10", v)
}
