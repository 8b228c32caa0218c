package discovery

// Scores assigned by the built-in strategies. They are part of the ranking
// contract: changing them changes which candidate wins.
const (
	ScorePrecomposedTouchIcon = 4
	ScoreTouchIcon            = 3
	ScoreLinkLogo             = 3
	ScoreMaskIcon             = 2
	ScoreIcon                 = 1

	ScoreAttrLogo   = 3
	ScoreAttrBrand  = 2
	ScoreAttrHeader = 1

	ScoreInlineLogo    = 3
	ScoreInlineBrand   = 2
	ScoreVectorRef     = 2
	ScoreVectorRefLogo = 1

	ScoreRegionImage      = 2
	ScoreRegionLastResort = 1

	// StrongScore is the score at which fallback strategies are skipped.
	StrongScore = 3
)
