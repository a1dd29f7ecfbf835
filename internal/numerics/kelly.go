package numerics

// Kelly returns the optimal bankroll fraction for a binary contract bought
// at ask that pays out $1 per share.
//
// Net odds are taken per dollar at risk: b = (1 - ask) / ask. The textbook
// simplification (p*payout - q) / payout overstates the fraction by up to 5x
// at high asks and must not be used here.
func Kelly(p, ask float64) float64 {
	if ask <= 0 || ask >= 1 || p <= 0 {
		return 0
	}

	b := (1.0 - ask) / ask
	q := 1.0 - p

	k := (b*p - q) / b
	if k < 0 {
		return 0
	}
	return k
}

// FractionalKelly applies the configured Kelly multiplier (0.5 = half-Kelly).
func FractionalKelly(p, ask, fraction float64) float64 {
	return Kelly(p, ask) * fraction
}
