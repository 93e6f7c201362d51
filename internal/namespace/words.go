// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

package namespace

// wordlist is a small, fixed set of short English words used to build
// human-legible, collision-resistant namespace names
// ("blackjack-<word>-<word>-<digits>"). No corpus example repo carries a
// random-word-list dependency (the reference implementation's
// random_word crate has no Go ecosystem equivalent represented in the
// examples); rather than fabricate a third-party dependency, the list is
// embedded here and selection uses math/rand/v2 — see DESIGN.md.
var wordlist = []string{
	"amber", "arc", "ash", "bay", "birch", "blue", "bold", "brook", "cedar",
	"cliff", "cloud", "coast", "coral", "crest", "dawn", "delta", "drift",
	"dune", "echo", "ember", "fern", "field", "fjord", "flame", "fog",
	"forest", "frost", "glade", "glen", "gold", "grove", "harbor", "haze",
	"hill", "ice", "iris", "ivy", "jade", "lake", "lark", "leaf", "lily",
	"lime", "lotus", "marsh", "maple", "meadow", "mesa", "mist", "moon",
	"moss", "myrtle", "oak", "oasis", "olive", "opal", "orchid", "peak",
	"pearl", "pine", "plain", "plum", "pond", "quartz", "rain", "reed",
	"reef", "ridge", "river", "rock", "rose", "rust", "sage", "sand",
	"shade", "shoal", "shore", "sky", "slate", "snow", "spark", "spring",
	"star", "stone", "storm", "stream", "summit", "swan", "tide", "trail",
	"tundra", "valley", "vine", "violet", "wave", "wheat", "willow",
	"wind", "wood", "zephyr",
}
