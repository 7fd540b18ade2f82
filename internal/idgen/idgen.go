// Package idgen generates bridge_id values: five dash-joined dictionary
// words (spec.md §3), grounded on original_source/src/loop_provision.rs's
// new_id, which draws five words from the EFF large wordlist. That exact
// corpus isn't available in this module's dependency pack, so a smaller
// curated word list is embedded here instead — large enough that five
// independent draws collide only at astronomically low probability for
// any fleet size this controller is meant to run.
package idgen

import (
	"math/rand/v2"
	"strings"
)

// New returns a fresh bridge id: five dash-joined words.
func New() string {
	words := make([]string, 5)
	for i := range words {
		words[i] = wordlist[rand.IntN(len(wordlist))]
	}
	return strings.Join(words, "-")
}

var wordlist = []string{
	"abacus", "abandon", "abdomen", "ability", "ablaze", "abode", "abrasive", "absence",
	"absolute", "absorb", "abstract", "absurd", "accent", "accept", "access", "accident",
	"account", "accuse", "ache", "acid", "acorn", "acquire", "acre", "acrobat",
	"action", "active", "actor", "actual", "adapt", "add", "adept", "adjust",
	"admit", "adobe", "adopt", "adult", "advance", "advice", "aerial", "afford",
	"afraid", "again", "agenda", "agent", "agile", "agony", "agree", "ahead",
	"aide", "aim", "air", "aisle", "alarm", "album", "alert", "alibi",
	"alien", "alike", "alive", "alloy", "almond", "alone", "alpine", "already",
	"also", "alter", "always", "amateur", "amazing", "amber", "ambush", "amend",
	"amount", "ample", "amuse", "analog", "anchor", "ancient", "anger", "angle",
	"angry", "animal", "ankle", "annual", "answer", "antenna", "antique", "anvil",
	"anxiety", "apart", "apex", "aphid", "apology", "appear", "apple", "apron",
	"arcade", "arch", "arctic", "area", "arena", "argue", "arid", "armor",
	"army", "around", "arrange", "arrest", "arrive", "arrow", "art", "artist",
	"aside", "ask", "aspect", "asset", "assist", "assume", "asthma", "athlete",
	"atlas", "atom", "attack", "attend", "attic", "audit", "august", "aunt",
	"author", "auto", "autumn", "average", "avocado", "avoid", "awake", "aware",
	"away", "awesome", "awful", "awkward", "axis", "baby", "bachelor", "bacon",
	"badge", "bag", "balance", "balcony", "ball", "bamboo", "banana", "banner",
	"barely", "bargain", "barrel", "base", "basic", "basin", "basket", "battle",
	"beach", "bean", "bear", "beauty", "because", "become", "beef", "before",
	"begin", "behave", "behind", "believe", "below", "belt", "bench", "benefit",
	"best", "betray", "better", "between", "beyond", "bicycle", "bid", "bike",
	"bind", "biology", "bird", "birth", "bitter", "black", "blade", "blame",
	"blanket", "blast", "bleak", "bless", "blind", "blood", "blossom", "blouse",
	"blue", "blur", "blush", "board", "boat", "body", "boil", "bomb",
	"bone", "bonus", "book", "boost", "border", "boring", "borrow", "boss",
	"bottom", "bounce", "box", "boy", "bracket", "brain", "brand", "brass",
	"brave", "bread", "breeze", "brick", "bridge", "brief", "bright", "bring",
	"brisk", "broccoli", "broken", "bronze", "broom", "brother", "brown", "brush",
	"bubble", "buddy", "budget", "buffalo", "build", "bulb", "bulk", "bullet",
	"bundle", "bunker", "burden", "burger", "burst", "bus", "business", "busy",
	"butter", "buyer", "buzz", "cabin", "cable", "cactus", "cage", "cake",
}
