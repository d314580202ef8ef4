package killmail

// IsRelevant reports whether km involves watched, either as the victim or as any attacker,
// compared by the reference of watched.Kind. With matchAll set, every killmail is relevant.
func IsRelevant(km *Killmail, watched EntityRef, matchAll bool) bool {
	if matchAll {
		return true
	}

	if km.Victim.Ref(watched.Kind).Equal(watched) {
		return true
	}

	for _, a := range km.Attackers {
		if a.Ref(watched.Kind).Equal(watched) {
			return true
		}
	}

	return false
}
