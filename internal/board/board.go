// Package board generates codeword boards and their per-viewer projections.
package board

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/codewords/codewords/internal/protocol"
)

const (
	// Size is the width and height of the board.
	Size  = 5
	Tiles = Size * Size

	bystanders    = 7
	startingCount = 9
	secondCount   = 8
)

//go:embed wordlist.txt
var wordlist string

var defaultDeck = mustDeck(strings.Split(wordlist, "\n"))

// Deck is the set of codewords boards are dealt from.
type Deck struct {
	words []string
}

// NewDeck builds a deck from words. Words are trimmed and uppercased and
// duplicates are dropped; a deck needs at least one board's worth of words.
func NewDeck(words []string) (*Deck, error) {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, raw := range words {
		word := strings.ToUpper(strings.TrimSpace(raw))
		if word == "" {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	if len(out) < Tiles {
		return nil, fmt.Errorf("deck has %d distinct words, need at least %d", len(out), Tiles)
	}
	return &Deck{words: out}, nil
}

func mustDeck(words []string) *Deck {
	d, err := NewDeck(words)
	if err != nil {
		panic(err)
	}
	return d
}

// DefaultDeck is the built-in word list.
func DefaultDeck() *Deck {
	return defaultDeck
}

// Len returns the number of distinct words in the deck.
func (d *Deck) Len() int {
	return len(d.words)
}

// Board holds the true characters behind every codeword. It is not safe for
// concurrent use; the owning game serializes access.
type Board struct {
	tiles        []protocol.Tile
	startingTeam protocol.Team
}

// New deals a board from the built-in word list.
func New() *Board {
	return defaultDeck.Deal()
}

// NewWithRand deals a board from the built-in word list using r.
func NewWithRand(r *rand.Rand) *Board {
	return defaultDeck.DealWithRand(r)
}

// Deal deals a board using the process-wide random source.
func (d *Deck) Deal() *Board {
	return d.DealWithRand(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// DealWithRand deals a board from r. The starting team gets nine agents, the
// other team eight, plus seven bystanders and one assassin.
func (d *Deck) DealWithRand(r *rand.Rand) *Board {
	startingTeam := protocol.TeamBlue
	if r.IntN(2) == 0 {
		startingTeam = protocol.TeamRed
	}
	redAgents, blueAgents := secondCount, startingCount
	if startingTeam == protocol.TeamRed {
		redAgents, blueAgents = startingCount, secondCount
	}

	characters := make([]protocol.Character, 0, Tiles)
	characters = appendN(characters, protocol.CharacterBystander, bystanders)
	characters = appendN(characters, protocol.CharacterRedAgent, redAgents)
	characters = appendN(characters, protocol.CharacterBlueAgent, blueAgents)
	characters = append(characters, protocol.CharacterAssassin)
	r.Shuffle(len(characters), func(i, j int) {
		characters[i], characters[j] = characters[j], characters[i]
	})

	picks := r.Perm(len(d.words))[:Tiles]
	tiles := make([]protocol.Tile, Tiles)
	for i, pick := range picks {
		tiles[i] = protocol.Tile{
			Codeword:  d.words[pick],
			Character: characters[i],
		}
	}
	return &Board{tiles: tiles, startingTeam: startingTeam}
}

func appendN(dst []protocol.Character, c protocol.Character, n int) []protocol.Character {
	for range n {
		dst = append(dst, c)
	}
	return dst
}

// StartingTeam is the team whose spymaster moves first.
func (b *Board) StartingTeam() protocol.Team {
	return b.startingTeam
}

// TilesFor projects the board for a viewer. Spymasters and spectators see
// every character once the first turn has started; everyone else, and
// everyone during pregame, only sees characters of spotted tiles.
func (b *Board) TilesFor(role protocol.PlayerRole, turnStarted bool) []protocol.Tile {
	return b.project(Reveals(role, turnStarted))
}

// Reveals reports whether a viewer with role sees unspotted characters.
func Reveals(role protocol.PlayerRole, turnStarted bool) bool {
	if !turnStarted {
		return false
	}
	return role == protocol.RoleSpymaster || role == protocol.RoleSpectator
}

func (b *Board) project(reveal bool) []protocol.Tile {
	out := make([]protocol.Tile, len(b.tiles))
	copy(out, b.tiles)
	if reveal {
		return out
	}
	for i := range out {
		if !out[i].Spotted {
			out[i].Character = protocol.CharacterUnknown
		}
	}
	return out
}
