package sentiment

// afinn is a subset of the AFINN-165 word list (valence -5..+5) covering
// vocabulary common in short-video comments.
var afinn = map[string]int{
	"abandon":      -2,
	"amazing":      4,
	"annoying":     -2,
	"awesome":      4,
	"awful":        -3,
	"bad":          -3,
	"beautiful":    3,
	"best":         3,
	"boring":       -3,
	"brilliant":    4,
	"broken":       -1,
	"clever":       2,
	"cool":         1,
	"crap":         -3,
	"crazy":        -2,
	"creative":     2,
	"cringe":       -2,
	"cute":         2,
	"dead":         -3,
	"disappoint":   -2,
	"disappointed": -2,
	"disgusting":   -3,
	"dislike":      -2,
	"dumb":         -3,
	"enjoy":        2,
	"enjoyed":      2,
	"epic":         3,
	"excellent":    3,
	"excited":      3,
	"fail":         -2,
	"fake":         -3,
	"fantastic":    4,
	"favorite":     2,
	"fun":          4,
	"funny":        4,
	"genius":       3,
	"good":         3,
	"great":        3,
	"happy":        3,
	"hate":         -3,
	"hilarious":    2,
	"horrible":     -3,
	"inspiring":    3,
	"lame":         -2,
	"laugh":        1,
	"like":         2,
	"lol":          3,
	"love":         3,
	"loved":        3,
	"lovely":       3,
	"meh":          -1,
	"nice":         3,
	"overrated":    -2,
	"perfect":      3,
	"pointless":    -2,
	"sad":          -2,
	"scam":         -2,
	"stupid":       -2,
	"terrible":     -3,
	"thanks":       2,
	"trash":        -3,
	"ugly":         -3,
	"useless":      -2,
	"waste":        -1,
	"weird":        -2,
	"win":          4,
	"wow":          4,
	"worst":        -3,
	"wrong":        -2,
	"yay":          2,
}

var negators = map[string]struct{}{
	"aint":    {},
	"aren't":  {},
	"can't":   {},
	"cannot":  {},
	"didn't":  {},
	"doesn't": {},
	"don't":   {},
	"isn't":   {},
	"never":   {},
	"no":      {},
	"not":     {},
	"wasn't":  {},
	"won't":   {},
}
