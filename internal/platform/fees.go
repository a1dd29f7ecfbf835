package platform

// kalshiEntryFee is the per-contract trading fee, charged at entry when
// held to settlement and again at exit on early closes. Weather markets on
// the other venue carry no fee for takers.
func kalshiEntryFee(ask float64) float64 {
	if ask <= 0 || ask >= 1 {
		return 0
	}
	return 0.07 * ask * (1 - ask)
}
