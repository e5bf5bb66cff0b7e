package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/courtside/cbbpoll/models"
)

var (
	ErrUnknownGame        = errors.New("bracket: unknown game")
	ErrSlotConflict       = errors.New("bracket: slot already fed by another game")
	ErrChampionshipNext   = errors.New("bracket: championship game cannot advance anywhere")
	ErrMissingSlotFlag    = errors.New("bracket: advancing game has no slot flag")
	ErrCycle              = errors.New("bracket: advancement cycle detected")
	ErrNotEntrant         = errors.New("bracket: winner is not an entrant of the game")
	ErrEntrantsUnresolved = errors.New("bracket: game entrants are not resolved yet")
	ErrAlreadyResolved    = errors.New("bracket: game already has a recorded winner")
)

// node holds a game plus at most two typed back-references to the games
// feeding its slots. Keeping the feeders on the node makes a double-feed
// unrepresentable once the graph is built.
type node struct {
	game       models.Game
	next       *node
	homeFeeder *node
	awayFeeder *node
	winner     *int
}

// Graph is an in-memory arena of a conference's games, indexed by id.
// It is the authority for entrant propagation: results applied to it flow
// winners into downstream slots, and a full rebuild from stored results
// always reaches the same state as incremental application.
type Graph struct {
	nodes map[int]*node
}

// NewGraph builds the arena and wires feeder back-references, validating
// the structural invariants: every next-game reference resolves, slots are
// fed at most once, championship games do not advance, and the advancement
// chain is acyclic.
func NewGraph(games []models.Game) (*Graph, error) {
	g := &Graph{nodes: make(map[int]*node, len(games))}
	for _, game := range games {
		game.Result = nil
		g.nodes[game.ID] = &node{game: game}
	}

	for _, n := range sortedNodes(g.nodes) {
		if n.game.NextGameID == nil {
			continue
		}
		if n.game.IsChampionship {
			return nil, fmt.Errorf("%w: game %d", ErrChampionshipNext, n.game.ID)
		}
		if n.game.WinnerToHome == nil {
			return nil, fmt.Errorf("%w: game %d", ErrMissingSlotFlag, n.game.ID)
		}
		target, ok := g.nodes[*n.game.NextGameID]
		if !ok {
			return nil, fmt.Errorf("%w: game %d advances into missing game %d", ErrUnknownGame, n.game.ID, *n.game.NextGameID)
		}
		n.next = target
		if *n.game.WinnerToHome {
			if target.homeFeeder != nil {
				return nil, fmt.Errorf("%w: games %d and %d both feed home slot of game %d",
					ErrSlotConflict, target.homeFeeder.game.ID, n.game.ID, target.game.ID)
			}
			target.homeFeeder = n
		} else {
			if target.awayFeeder != nil {
				return nil, fmt.Errorf("%w: games %d and %d both feed away slot of game %d",
					ErrSlotConflict, target.awayFeeder.game.ID, n.game.ID, target.game.ID)
			}
			target.awayFeeder = n
		}
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) checkAcyclic() error {
	for id, n := range g.nodes {
		seen := map[int]bool{id: true}
		for cur := n.next; cur != nil; cur = cur.next {
			if seen[cur.game.ID] {
				return fmt.Errorf("%w: via game %d", ErrCycle, cur.game.ID)
			}
			seen[cur.game.ID] = true
		}
	}
	return nil
}

// Advancement describes the slot write that follows a recorded result.
type Advancement struct {
	NextGameID int
	ToHome     bool
	TeamID     int
}

// Entrants returns the current entrants of a game. Either may be nil when
// the game is not yet reachable; an unknown game yields (nil, nil).
func (g *Graph) Entrants(gameID int) (home, away *int) {
	n, ok := g.nodes[gameID]
	if !ok {
		return nil, nil
	}
	return copyInt(n.game.HomeTeamID), copyInt(n.game.AwayTeamID)
}

// Winner returns the applied winner of a game, if any.
func (g *Graph) Winner(gameID int) *int {
	n, ok := g.nodes[gameID]
	if !ok {
		return nil
	}
	return copyInt(n.winner)
}

// ApplyResult records winnerTeamID as the winner of gameID and, when the
// game advances somewhere, flows the winner into the designated slot of the
// next game. Applying the same winner twice is a no-op; a different winner
// for an already-resolved game is rejected.
func (g *Graph) ApplyResult(gameID, winnerTeamID int) (*Advancement, error) {
	n, ok := g.nodes[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	if n.winner != nil {
		if *n.winner == winnerTeamID {
			return g.advancement(n, winnerTeamID), nil
		}
		return nil, fmt.Errorf("%w: game %d", ErrAlreadyResolved, gameID)
	}
	if !n.game.EntrantsResolved() {
		return nil, fmt.Errorf("%w: game %d", ErrEntrantsUnresolved, gameID)
	}
	if !n.game.HasEntrant(winnerTeamID) {
		return nil, fmt.Errorf("%w: team %d in game %d", ErrNotEntrant, winnerTeamID, gameID)
	}

	w := winnerTeamID
	n.winner = &w

	adv := g.advancement(n, winnerTeamID)
	if adv != nil {
		target := n.next
		t := winnerTeamID
		if adv.ToHome {
			target.game.HomeTeamID = &t
		} else {
			target.game.AwayTeamID = &t
		}
	}
	return adv, nil
}

func (g *Graph) advancement(n *node, teamID int) *Advancement {
	if n.next == nil || n.game.IsChampionship {
		return nil
	}
	return &Advancement{
		NextGameID: n.next.game.ID,
		ToHome:     *n.game.WinnerToHome,
		TeamID:     teamID,
	}
}

// Rebuild re-derives every downstream entrant from the given results alone,
// leaves first, so the outcome is independent of the order results were
// recorded in. Slots that are fed by an upstream game are cleared first;
// seeded entrants (slots with no feeder) are kept.
func (g *Graph) Rebuild(results []models.GameResult) error {
	for _, n := range g.nodes {
		if n.homeFeeder != nil {
			n.game.HomeTeamID = nil
		}
		if n.awayFeeder != nil {
			n.game.AwayTeamID = nil
		}
		n.winner = nil
	}

	ordered := make([]models.GameResult, len(results))
	copy(ordered, results)
	sort.Slice(ordered, func(i, j int) bool {
		di, dj := g.depth(ordered[i].GameID), g.depth(ordered[j].GameID)
		if di != dj {
			return di > dj // deeper means further from the championship
		}
		return ordered[i].GameID < ordered[j].GameID
	})

	for _, r := range ordered {
		if _, err := g.ApplyResult(r.GameID, r.WinnerTeamID); err != nil {
			return fmt.Errorf("rebuilding from result for game %d: %w", r.GameID, err)
		}
	}
	return nil
}

// depth is the number of hops from the game to the end of its advancement
// chain. Unknown games sort last.
func (g *Graph) depth(gameID int) int {
	n, ok := g.nodes[gameID]
	if !ok {
		return -1
	}
	d := 0
	for cur := n.next; cur != nil; cur = cur.next {
		d++
	}
	return d
}

// Games returns the current state of every game, entrants included, sorted
// by id.
func (g *Graph) Games() []models.Game {
	out := make([]models.Game, 0, len(g.nodes))
	for _, n := range sortedNodes(g.nodes) {
		out = append(out, n.game)
	}
	return out
}

func sortedNodes(nodes map[int]*node) []*node {
	ids := make([]int, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*node, 0, len(ids))
	for _, id := range ids {
		out = append(out, nodes[id])
	}
	return out
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
