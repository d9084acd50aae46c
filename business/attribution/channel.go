package attribution

import (
	"strings"

	"customerIntel/domain"
)

var socialSources = map[string]struct{}{
	"facebook":  {},
	"twitter":   {},
	"instagram": {},
	"linkedin":  {},
	"tiktok":    {},
}

// channelScores feeds the data-driven model. Unknown channels score 1.0.
var channelScores = map[domain.Channel]float64{
	domain.ChannelGoogleAds:     1.2,
	domain.ChannelFacebookAds:   1.1,
	domain.ChannelTikTokAds:     1.0,
	domain.ChannelLinkedInAds:   1.0,
	domain.ChannelEmail:         1.3,
	domain.ChannelOrganicSearch: 0.9,
	domain.ChannelOrganicSocial: 0.8,
	domain.ChannelReferral:      1.0,
	domain.ChannelDirect:        0.7,
}

// ClassifyChannel buckets a touch. A click id wins over any UTM heuristic,
// checked in the order gclid, fbclid, ttclid, li_fat_id.
func ClassifyChannel(ids domain.ClickIDs, utm domain.UTM, referrer string) domain.Channel {
	switch {
	case ids.Gclid != "":
		return domain.ChannelGoogleAds
	case ids.Fbclid != "":
		return domain.ChannelFacebookAds
	case ids.Ttclid != "":
		return domain.ChannelTikTokAds
	case ids.LiFatID != "":
		return domain.ChannelLinkedInAds
	}

	source := strings.ToLower(utm.Source)
	medium := strings.ToLower(utm.Medium)

	if strings.Contains(medium, "email") {
		return domain.ChannelEmail
	}
	if strings.Contains(medium, "cpc") || strings.Contains(medium, "paid") {
		return domain.ChannelPaidSearch
	}
	if strings.Contains(source, "google") && utm.Medium == "organic" {
		return domain.ChannelOrganicSearch
	}
	if _, ok := socialSources[source]; ok {
		return domain.ChannelOrganicSocial
	}
	if referrer != "" {
		return domain.ChannelReferral
	}
	return domain.ChannelDirect
}

func EventChannel(e domain.Event) domain.Channel {
	return ClassifyChannel(e.ClickIDs, e.UTM, e.Referrer)
}

func channelScore(c domain.Channel) float64 {
	if s, ok := channelScores[c]; ok {
		return s
	}
	return 1.0
}
