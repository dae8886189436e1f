package modeengine

import (
	"strings"

	"github.com/vidinsight-tech/queryon/internal/model"
)

// BuildModeContext returns a Turkish-language system-prompt suffix for the
// current collection state of one mode.
//
// Flow order:
//  1. Ask required fields one by one (in array order, visibility-filtered).
//  2. Ask optional fields one by one (the user may skip with "geç/yok/istemiyorum").
//  3. Show a summary and ask for confirmation.
func BuildModeContext(mode model.ActiveMode, fields []model.FieldConfig, collected map[string]string, confirmed, saved bool) string {
	var lines []string
	lines = append(lines, "--- [MODE CONTEXT] ---")

	switch {
	case saved:
		lines = append(lines, "Kaydedildi. Kullanıcıya teşekkür et ve başka yardım isteyip istemediğini sor.")
	case confirmed:
		lines = append(lines, "Bilgiler onaylandı ve şu an kaydediliyor.")
	case AllFieldsHandled(fields, collected):
		var summaryParts []string
		for _, f := range fields {
			if !FieldIsVisible(f, collected) {
				continue
			}
			val := collected[f.Key]
			if val != "" && val != skipSentinel {
				summaryParts = append(summaryParts, "  • "+fieldLabel(f)+": "+val)
			}
		}
		if mode == model.ModeAppointment {
			if block, ok := buildComputedPriceBlock(collected); ok {
				summaryParts = append(summaryParts, block)
			}
		}
		summary := strings.Join(summaryParts, "\n")
		lines = append(lines, "Tüm bilgiler toplandı. Kullanıcıya şu özeti göster ve "+
			"\"Bu bilgiler doğru mu? Onaylıyor musunuz?\" diye sor:\n"+summary)
	default:
		var filled []string
		for _, f := range fields {
			val := collected[f.Key]
			if val != "" && val != skipSentinel {
				filled = append(filled, "  ✓ "+fieldLabel(f)+": "+val)
			}
		}
		if len(filled) > 0 {
			lines = append(lines, "Şu ana kadar ALINAN BİLGİLER (bunları TEKRAR SORMA):\n"+strings.Join(filled, "\n"))
		}

		if mode == model.ModeAppointment {
			if block, ok := buildComputedPriceBlock(collected); ok {
				lines = append(lines, block)
			}
		}

		remaining := remainingRequired(fields, collected)
		if len(remaining) > 0 {
			var items []string
			for _, f := range remaining {
				if f.ShowIf != nil {
					depLabel := f.ShowIf.Field
					for _, other := range fields {
						if other.Key == f.ShowIf.Field {
							depLabel = fieldLabel(other)
							break
						}
					}
					items = append(items, fieldLabel(f)+" (eğer "+depLabel+" = "+strings.Join(f.ShowIf.Values, " veya ")+")")
				} else {
					items = append(items, fieldLabel(f))
				}
			}
			lines = append(lines, "Henüz alınmayan zorunlu bilgiler: "+strings.Join(items, ", ")+"\n"+
				"ÖNEMLİ: Eğer kullanıcı tek mesajda birden fazla bilgi verdiyse, "+
				"hepsini aynı anda kabul et ve sadece en başta gelen EKSİK alanı sor.")
		}

		if nextReq := GetNextField(fields, collected); nextReq != nil {
			question := formatQuestion(*nextReq, false)

			tempCollected := cloneWithFilled(collected, nextReq.Key)
			after := GetNextField(fields, tempCollected)
			var afterQ string
			if after != nil {
				afterQ = formatQuestion(*after, !after.Required)
			} else if opt := GetNextOptionalField(fields, tempCollected); opt != nil {
				afterQ = formatQuestion(*opt, true)
			}

			hint := "KURAL: Eğer kullanıcı bu mesajda \"" + fieldLabel(*nextReq) + "\" bilgisini zaten verdiyse, cevabı kabul et"
			if afterQ != "" {
				hint += " ve şu soruyu sor: \"" + afterQ + "\""
			}
			hint += ".\n"

			if nextReq.Validation != nil && *nextReq.Validation != model.ValidationText {
				if fmtHint, ok := validationHints[*nextReq.Validation]; ok {
					hint += "DOĞRULAMA: Bu alan için " + fmtHint + " beklenmektedir. " +
						"Kullanıcı geçersiz bir format verirse, nazikçe doğru formatı iste.\n"
				}
			} else if len(nextReq.Options) > 0 {
				var allowed []string
				for _, o := range nextReq.Options {
					if strings.TrimSpace(o) != "" {
						allowed = append(allowed, strings.TrimSpace(o))
					}
				}
				hint += "DOĞRULAMA: Sadece şu seçeneklerden biri kabul edilir: " + strings.Join(allowed, ", ") +
					". Kullanıcı listede olmayan bir değer verirse, tekrar sor.\n"
			}

			lines = append(lines, "SONRAKİ SORU:\n\""+question+"\"\n"+hint+
				"Eğer kullanıcı henüz cevap vermediyse, SADECE bu soruyu sor. Başka bilgi verme, liste gösterme.")
		} else if nextOpt := GetNextOptionalField(fields, collected); nextOpt != nil {
			question := formatQuestion(*nextOpt, true)
			tempCollected2 := cloneWithFilled(collected, nextOpt.Key)
			var afterQ2 string
			if after2 := GetNextOptionalField(fields, tempCollected2); after2 != nil {
				afterQ2 = formatQuestion(*after2, true)
			}

			hint2 := ""
			if afterQ2 != "" {
				hint2 = "Eğer kullanıcı bu soruyu zaten cevapladıysa, sonraki soru: \"" + afterQ2 + "\"\n"
			}
			if nextOpt.Validation != nil && *nextOpt.Validation != model.ValidationText {
				if fmtHint, ok := validationHints[*nextOpt.Validation]; ok {
					hint2 += "DOĞRULAMA: Bu alan için " + fmtHint + " beklenmektedir. " +
						"Geçersiz format verilirse nazikçe tekrar iste veya 'geç' demelerine izin ver.\n"
				}
			}

			lines = append(lines, "SONRAKİ SORU:\n\""+question+"\"\n"+hint2+
				"Kullanıcı 'yok', 'geç', 'istemiyorum', 'pas', 'hayır', 'atla' gibi bir ifade kullanırsa "+
				"bu soruyu KESİNLİKLE TEKRAR SORMA; bu alanı geç ve bir sonraki adıma geç (özet + onay).")
		} else {
			lines = append(lines, "Kullanıcıdan bilgi almaya devam et.")
		}
	}

	lines = append(lines, "--- [/MODE CONTEXT] ---")
	return strings.Join(lines, "\n")
}

func cloneWithFilled(collected map[string]string, key string) map[string]string {
	out := make(map[string]string, len(collected)+1)
	for k, v := range collected {
		out[k] = v
	}
	out[key] = "<FILLED>"
	return out
}

var rescheduleFieldLabels = map[string]string{
	"event_date": "Yeni Tarih",
	"event_time": "Yeni Saat",
	"artist":     "Sanatçı",
}

// buildRescheduleContext builds a Turkish mode-context string for an active
// reschedule flow. updates carries event_date/event_time/artist so far.
func buildRescheduleContext(apptNumber string, updates map[string]string, confirmed, saved bool) string {
	lines := []string{"--- [MODE CONTEXT: reschedule] ---"}
	lines = append(lines, "RANDEVU DEĞİŞİKLİĞİ AKTİF — Randevu No: "+apptNumber)
	lines = append(lines, "Kullanıcı bu randevu için yeni tarih/saat (ve isteğe bağlı sanatçı) istiyor.")

	if len(updates) > 0 {
		lines = append(lines, "\nŞimdiye kadar toplanan bilgiler:")
		for _, k := range []string{"event_date", "event_time", "artist"} {
			v, ok := updates[k]
			if !ok || v == "" {
				continue
			}
			label := rescheduleFieldLabels[k]
			lines = append(lines, "  • "+label+": "+v)
		}
	}

	hasDate := updates["event_date"] != ""
	hasTime := updates["event_time"] != ""

	switch {
	case confirmed && !saved:
		lines = append(lines, "\nKullanıcı onayladı — değişiklik kaydediliyor.")
	case hasDate && hasTime:
		lines = append(lines, "\nTüm bilgiler toplandı: "+updates["event_date"]+" saat "+updates["event_time"]+".")
		lines = append(lines, "SONRAKİ SORU:\n\"Bu değişikliği onaylıyor musunuz? (Evet/Hayır)\"")
	case !hasDate:
		lines = append(lines, "\nSONRAKİ SORU:\n\"Yeni tarih için hangi günü tercih edersiniz?\"")
	case !hasTime:
		lines = append(lines, "\nSONRAKİ SORU:\n\"Uygun olduğunuz saati aşağıdan seçin (seçenekler bot tarafından sunulacak).\"")
	}

	lines = append(lines, "--- [/MODE CONTEXT] ---")
	return strings.Join(lines, "\n")
}

// ComputeModeContext determines the active mode and produces its context
// string, given the orchestrator config and the conversation's FlowState.
// Returns (nil, "") when no mode is active.
//
// Precedence: an active reschedule always wins; a saved appointment injects
// a standing reference-number reminder instead of a collection prompt;
// otherwise appointment mode takes priority over order mode.
func ComputeModeContext(cfg *model.OrchestratorConfig, flowState *model.FlowState) (*model.ActiveMode, string) {
	if flowState == nil {
		flowState = &model.FlowState{}
	}

	apptState := flowState.Appointment
	if apptState == nil {
		apptState = &model.ModeState{}
	}
	orderState := flowState.Order
	if orderState == nil {
		orderState = &model.ModeState{}
	}
	rescheduleState := flowState.Reschedule
	if rescheduleState == nil {
		rescheduleState = &model.ModeState{}
	}

	storedMode := flowState.ActiveMode

	rescheduleActive := rescheduleState.RefNumber != "" && !rescheduleState.Saved
	if rescheduleActive {
		mode := model.ModeReschedule
		context := buildRescheduleContext(rescheduleState.RefNumber, rescheduleState.Collected, rescheduleState.Confirmed, rescheduleState.Saved)
		return &mode, context
	}

	apptActive := func() bool {
		if len(cfg.AppointmentFields) == 0 {
			return false
		}
		if apptState.Saved {
			return false
		}
		return (storedMode != nil && *storedMode == model.ModeAppointment) ||
			(storedMode == nil && len(apptState.Collected) > 0)
	}
	orderActive := func() bool {
		if !cfg.OrderModeEnabled || len(cfg.OrderFields) == 0 {
			return false
		}
		if orderState.Saved {
			return false
		}
		return (storedMode != nil && *storedMode == model.ModeOrder) ||
			(storedMode == nil && len(orderState.Collected) > 0)
	}

	// A saved appointment keeps a standing reference reminder so the
	// character LLM can quote the number and cancel/reschedule requests
	// resolve without re-asking for it.
	if apptState.Saved && apptState.RefNumber != "" {
		rnd := apptState.RefNumber
		context := "[RANDEVU KAYITLI]\n" +
			"Bu müşterinin randevusu oluşturuldu. Randevu numarası: " + rnd + "\n" +
			"Müşteri iptal veya değişiklik isterse bu numarayı kullan ve " +
			"'" + rnd + " iptal' ya da '" + rnd + " tarihimi değiştir' gibi komutları hatırlat.\n" +
			"[/RANDEVU KAYITLI]"
		return nil, context
	}

	if ((storedMode != nil && *storedMode == model.ModeAppointment) || (storedMode == nil && apptActive())) && !apptState.Saved {
		if len(cfg.AppointmentFields) == 0 {
			return nil, ""
		}
		mode := model.ModeAppointment
		context := BuildModeContext(model.ModeAppointment, cfg.AppointmentFields, apptState.Collected, apptState.Confirmed, false)
		return &mode, context
	}

	if ((storedMode != nil && *storedMode == model.ModeOrder) || (storedMode == nil && orderActive())) && !orderState.Saved {
		if !cfg.OrderModeEnabled || len(cfg.OrderFields) == 0 {
			return nil, ""
		}
		mode := model.ModeOrder
		context := BuildModeContext(model.ModeOrder, cfg.OrderFields, orderState.Collected, orderState.Confirmed, false)
		return &mode, context
	}

	return nil, ""
}
