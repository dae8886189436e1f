package modeengine

import (
	"strconv"
	"strings"
)

// priceTable holds base studio prices in TRY, keyed by artist -> event type.
// Kept in sync with the price table injected into the character system prompt.
var priceTable = map[string]map[string]int{
	"İzel":          {"Düğün": 20000, "Nişan": 15000, "Kına": 12000, "Söz / İsteme": 10000, "Davetli / Nedime": 5000, "Profesyonel Makyaj": 3000},
	"Merve":         {"Düğün": 18000, "Nişan": 12000, "Kına": 10000, "Söz / İsteme": 8000, "Davetli / Nedime": 4000, "Profesyonel Makyaj": 2500},
	"Dicle":         {"Düğün": 22000, "Nişan": 16000, "Kına": 13000, "Söz / İsteme": 11000, "Davetli / Nedime": 5500, "Profesyonel Makyaj": 3500},
	"İrem":          {"Düğün": 15000, "Nişan": 10000, "Kına": 9000, "Söz / İsteme": 7000, "Davetli / Nedime": 3500, "Profesyonel Makyaj": 2000},
	"Gizem":         {"Düğün": 15000, "Nişan": 10000, "Kına": 9000, "Söz / İsteme": 7000, "Davetli / Nedime": 3500, "Profesyonel Makyaj": 2000},
	"Neslihan":      {"Düğün": 15000, "Nişan": 10000, "Kına": 9000, "Söz / İsteme": 7000, "Davetli / Nedime": 3500, "Profesyonel Makyaj": 2000},
	"Standart Ekip": {"Düğün": 10000, "Nişan": 5000, "Kına": 5000, "Söz / İsteme": 4000, "Davetli / Nedime": 2500, "Profesyonel Makyaj": 1500},
}

// artistOrder fixes iteration order for price listings: map order is
// randomised in Go but the quoted price table must render deterministically.
var artistOrder = []string{"İzel", "Merve", "Dicle", "İrem", "Gizem", "Neslihan", "Standart Ekip"}

// extraPersonRates is the per-additional-person surcharge, by canonical location.
var extraPersonRates = map[string]int{
	"Stüdyo":      5000,
	"Otel / Ev":   6000,
	"Şehir Dışı":  7000,
}

const defaultExtraPersonRate = 5000

var eventAliases = map[string]string{
	"söz":                 "Söz / İsteme",
	"söz / isteme":        "Söz / İsteme",
	"söz/isteme":          "Söz / İsteme",
	"isteme":              "Söz / İsteme",
	"davetli":             "Davetli / Nedime",
	"nedime":              "Davetli / Nedime",
	"davetli / nedime":    "Davetli / Nedime",
	"davetli/nedime":      "Davetli / Nedime",
	"profesyonel makyaj":  "Profesyonel Makyaj",
	"prof. makyaj":        "Profesyonel Makyaj",
	"prof.makyaj":         "Profesyonel Makyaj",
	"düğün":               "Düğün",
	"nişan":               "Nişan",
	"kına":                "Kına",
}

var locationAliases = map[string]string{
	"stüdyo":      "Stüdyo",
	"otel":        "Otel / Ev",
	"otel / ev":   "Otel / Ev",
	"otel/ev":     "Otel / Ev",
	"ev":          "Otel / Ev",
	"şehir dışı":  "Şehir Dışı",
	"şehirdışı":   "Şehir Dışı",
}

// normEvent returns the canonical event-type name, or "" if unrecognised.
func normEvent(eventType string) string {
	key := strings.ToLower(strings.TrimSpace(eventType))
	if canonical, ok := eventAliases[key]; ok {
		return canonical
	}
	for canonical := range priceTable["İzel"] {
		if strings.ToLower(canonical) == key {
			return canonical
		}
	}
	return ""
}

// normLocation returns the canonical location name, or "" if unrecognised.
func normLocation(location string) string {
	key := strings.ToLower(strings.TrimSpace(location))
	if canonical, ok := locationAliases[key]; ok {
		return canonical
	}
	for canonical := range extraPersonRates {
		if strings.ToLower(canonical) == key {
			return canonical
		}
	}
	return ""
}

func normArtist(artist string) (string, map[string]int) {
	key := strings.ToLower(strings.TrimSpace(artist))
	for name, prices := range priceTable {
		if strings.ToLower(name) == key {
			return name, prices
		}
	}
	return "", nil
}

// fmtTRY formats an integer TRY amount with a Turkish thousands separator:
// 22000 -> "22.000".
func fmtTRY(amount int) string {
	s := strconv.Itoa(amount)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)
	out := strings.Join(groups, ".")
	if neg {
		out = "-" + out
	}
	return out
}

// CalculatePrice returns the exact total price in TRY from the hardcoded
// price table. ok is false when any input is unrecognised — callers must
// not inject a wrong number and should leave pricing to the LLM in that case.
func CalculatePrice(artist, eventType, location string, totalPeople int) (price int, ok bool) {
	normEv := normEvent(eventType)
	normLoc := normLocation(location)
	if normEv == "" || normLoc == "" {
		return 0, false
	}

	_, prices := normArtist(artist)
	if prices == nil {
		return 0, false
	}
	base, ok := prices[normEv]
	if !ok {
		return 0, false
	}

	switch normLoc {
	case "Otel / Ev":
		price = base + 2000
	case "Şehir Dışı":
		price = base * 2
	default: // Stüdyo
		price = base
	}

	extra := totalPeople - 1
	if extra < 0 {
		extra = 0
	}
	rate := defaultExtraPersonRate
	if r, ok := extraPersonRates[normLoc]; ok {
		rate = r
	}
	price += extra * rate

	return price, true
}

// buildComputedPriceBlock returns a pre-computed price block for injection
// into the mode context. When the LLM sees this block it must use these
// numbers verbatim and must not attempt to recalculate prices itself.
func buildComputedPriceBlock(collected map[string]string) (string, bool) {
	eventType := strings.TrimSpace(collected["event_type"])
	location := strings.TrimSpace(collected["location"])
	artist := strings.TrimSpace(collected["artist"])

	if eventType == "" || location == "" {
		return "", false
	}

	normLoc := normLocation(location)
	normEv := normEvent(eventType)
	if normLoc == "" || normEv == "" {
		return "", false
	}

	lines := []string{
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━",
		"HESAPLANAN FİYATLAR (motor hesaplıyor — LLM bu sayıları değiştirmez)",
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━",
	}

	if artist != "" && artist != skipSentinel {
		extraStr := strings.TrimSpace(collected["extra_people"])
		if extraStr == "" {
			extraStr = "1"
		}
		totalPeople, err := strconv.Atoi(extraStr)
		if err != nil || totalPeople < 1 {
			totalPeople = 1
		}

		price, ok := CalculatePrice(artist, eventType, location, totalPeople)
		if !ok {
			return "", false
		}

		extra := totalPeople - 1
		rate := defaultExtraPersonRate
		if r, ok := extraPersonRates[normLoc]; ok {
			rate = r
		}
		basePrice, _ := CalculatePrice(artist, eventType, location, 1)

		lines = append(lines, "Artist : "+artist)
		lines = append(lines, "Hizmet : "+normEv+"  |  Lokasyon : "+normLoc)
		if extra > 0 {
			lines = append(lines, "Kişi   : "+strconv.Itoa(totalPeople)+" ("+strconv.Itoa(extra)+" ek kişi × "+fmtTRY(rate)+"₺)")
			lines = append(lines, "Hesap  : "+fmtTRY(basePrice)+"₺ + "+strconv.Itoa(extra)+" × "+fmtTRY(rate)+"₺ = "+fmtTRY(price)+"₺")
		} else {
			lines = append(lines, "Kişi   : 1")
			lines = append(lines, "Hesap  : "+fmtTRY(price)+"₺")
			lines = append(lines, "(Her ek kişi için +"+fmtTRY(rate)+"₺)")
		}
		lines = append(lines, "TOPLAM : "+fmtTRY(price)+"₺  ← Bu rakamı kullan, değiştirme")
	} else {
		lines = append(lines, "Hizmet : "+normEv+"  |  Lokasyon : "+normLoc)
		lines = append(lines, "Artist fiyatları (aşağıdaki tabloyu olduğu gibi kullan):")
		for _, name := range artistOrder {
			base, ok := priceTable[name][normEv]
			if !ok {
				continue
			}
			var p int
			switch normLoc {
			case "Otel / Ev":
				p = base + 2000
			case "Şehir Dışı":
				p = base * 2
			default:
				p = base
			}
			lines = append(lines, "  • "+name+": "+fmtTRY(p)+"₺")
		}
		rate := defaultExtraPersonRate
		if r, ok := extraPersonRates[normLoc]; ok {
			rate = r
		}
		lines = append(lines, "(Her ek kişi için ayrıca +"+fmtTRY(rate)+"₺)")
	}

	lines = append(lines, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	return strings.Join(lines, "\n"), true
}
