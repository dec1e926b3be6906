package tracking

import (
	"net/url"
	"strings"

	"github.com/withindevelopment-activate/within-the-app-sub000/internal/entity"
)

// Weights of the traffic sources. An explicit non-direct UTM source
// outranks all of them.
const (
	WeightUTM      = 1000
	WeightSocial   = 100
	WeightGoogle   = 70
	WeightBing     = 60
	WeightReferral = 50
	WeightEmail    = 40
	WeightDirect   = 20
	WeightUnknown  = 10
)

var sourceWeights = map[string]int{
	entity.SourceInstagram: WeightSocial,
	entity.SourceFacebook:  WeightSocial,
	entity.SourceTikTok:    WeightSocial,
	entity.SourceSnapchat:  WeightSocial,
	entity.SourceGoogle:    WeightGoogle,
	entity.SourceBing:      WeightBing,
	entity.SourceReferral:  WeightReferral,
	entity.SourceEmail:     WeightEmail,
	entity.SourceDirect:    WeightDirect,
	entity.SourceUnknown:   WeightUnknown,
}

// Weight returns the ranking weight of a source. Sources outside the known
// set rank as referrals.
func Weight(source string) int {
	source = normalizeSource(source)
	if source == "" {
		return WeightUnknown
	}
	if w, ok := sourceWeights[source]; ok {
		return w
	}
	return WeightReferral
}

var sourceAliases = map[string]string{
	"ig":         entity.SourceInstagram,
	"insta":      entity.SourceInstagram,
	"fb":         entity.SourceFacebook,
	"meta":       entity.SourceFacebook,
	"tt":         entity.SourceTikTok,
	"tik_tok":    entity.SourceTikTok,
	"snap":       entity.SourceSnapchat,
	"sc":         entity.SourceSnapchat,
	"adwords":    entity.SourceGoogle,
	"google_ads": entity.SourceGoogle,
	"mail":       entity.SourceEmail,
	"newsletter": entity.SourceEmail,
	"(direct)":   entity.SourceDirect,
	"none":       entity.SourceDirect,
}

func normalizeSource(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if a, ok := sourceAliases[s]; ok {
		return a
	}
	return s
}

type candidate struct {
	source string
	typ    entity.AttributionType
}

func (c candidate) weight() int {
	if c.typ == entity.AttributionUTM && c.source != entity.SourceDirect {
		return WeightUTM
	}
	return Weight(c.source)
}

// hostSources maps referrer host suffixes to sources. Mail hosts come
// before google so that mail.google.com is not read as search traffic.
var hostSources = []struct {
	suffix string
	source string
}{
	{"mail.google.com", entity.SourceEmail},
	{"outlook.live.com", entity.SourceEmail},
	{"outlook.office.com", entity.SourceEmail},
	{"mail.yahoo.com", entity.SourceEmail},
	{"instagram.com", entity.SourceInstagram},
	{"facebook.com", entity.SourceFacebook},
	{"fb.com", entity.SourceFacebook},
	{"fb.me", entity.SourceFacebook},
	{"messenger.com", entity.SourceFacebook},
	{"tiktok.com", entity.SourceTikTok},
	{"snapchat.com", entity.SourceSnapchat},
	{"google.com", entity.SourceGoogle},
	{"googleadservices.com", entity.SourceGoogle},
	{"bing.com", entity.SourceBing},
}

var clickIdSources = []struct {
	param  string
	source string
}{
	{"igshid", entity.SourceInstagram},
	{"fbclid", entity.SourceFacebook},
	{"ttclid", entity.SourceTikTok},
	{"ScCid", entity.SourceSnapchat},
	{"gclid", entity.SourceGoogle},
	{"gbraid", entity.SourceGoogle},
	{"wbraid", entity.SourceGoogle},
	{"msclkid", entity.SourceBing},
}

var userAgentSources = []struct {
	markers []string
	source  string
}{
	{[]string{"Instagram"}, entity.SourceInstagram},
	{[]string{"FBAN", "FBAV", "FB_IAB"}, entity.SourceFacebook},
	{[]string{"musical_ly", "BytedanceWebview", "TikTok"}, entity.SourceTikTok},
	{[]string{"Snapchat"}, entity.SourceSnapchat},
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	h := strings.ToLower(u.Hostname())
	for _, p := range []string{"www.", "m.", "l.", "lm."} {
		h = strings.TrimPrefix(h, p)
	}
	return h
}

func hasHostSuffix(host, suffix string) bool {
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// FromReferrer infers a source from the referrer host. The store's own host
// produces no candidate.
func FromReferrer(referrer, storeHost string) (string, bool) {
	host := hostOf(referrer)
	if host == "" {
		return "", false
	}
	if storeHost != "" && hasHostSuffix(host, storeHost) {
		return "", false
	}
	if strings.HasPrefix(host, "mail.") || strings.Contains(host, "outlook") {
		return entity.SourceEmail, true
	}
	for _, hs := range hostSources {
		if hasHostSuffix(host, hs.suffix) {
			return hs.source, true
		}
	}
	if strings.HasPrefix(host, "google.") {
		return entity.SourceGoogle, true
	}
	return entity.SourceReferral, true
}

// FromClickIds infers a source from ad click identifiers on the landing URL.
func FromClickIds(pageURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return "", false
	}
	q := u.Query()
	for _, c := range clickIdSources {
		if q.Get(c.param) != "" {
			return c.source, true
		}
	}
	return "", false
}

// FromUserAgent infers a source from in-app browser markers.
func FromUserAgent(ua string) (string, bool) {
	for _, s := range userAgentSources {
		for _, m := range s.markers {
			if strings.Contains(ua, m) {
				return s.source, true
			}
		}
	}
	return "", false
}

// IsCrawler reports whether the user agent contains any of the markers.
// Matching is case-insensitive.
func IsCrawler(ua string, markers []string) bool {
	lua := strings.ToLower(ua)
	for _, m := range markers {
		if m != "" && strings.Contains(lua, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func cleanPath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// isStoreRoot reports whether pageURL points at the store's root path.
func isStoreRoot(pageURL string, store *url.URL) bool {
	if store == nil {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || pageURL == "" {
		return false
	}
	if u.Host != "" && hostOf(u.Host) != hostOf(store.Host) {
		return false
	}
	return cleanPath(u.Path) == cleanPath(store.Path)
}
