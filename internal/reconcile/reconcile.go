// Package reconcile diffs two account snapshots and emits entity
// lifecycle events: positions keyed by coin, vault deposits by vault
// address, open orders by order id. The diff is pure and allocation
// light; publishing and metrics live with the callers.
package reconcile

import (
	"time"

	"hyperwatch/internal/account"
)

// EventType identifies one entity lifecycle transition.
type EventType int

const (
	PositionOpened EventType = iota
	PositionClosed
	VaultDeposited
	VaultWithdrawn
	OrderPlaced
	OrderRemoved
)

func (t EventType) String() string {
	switch t {
	case PositionOpened:
		return "position_opened"
	case PositionClosed:
		return "position_closed"
	case VaultDeposited:
		return "vault_deposited"
	case VaultWithdrawn:
		return "vault_withdrawn"
	case OrderPlaced:
		return "order_placed"
	case OrderRemoved:
		return "order_removed"
	default:
		return "unknown"
	}
}

// Event is one entity transition observed between consecutive snapshots.
// Created events carry the full record from the current snapshot; removed
// events carry only the identity key.
type Event struct {
	Type EventType
	At   time.Time

	Coin         string
	VaultAddress string
	OrderID      int64

	Position *account.Position
	Vault    *account.VaultDeposit
	Order    *account.OpenOrder
}

// Diff compares the previous snapshot with the current one and returns
// the entity transitions, created before removed within each entity kind.
// A nil previous snapshot means everything in current is newly created.
func Diff(previous, current *account.State, at time.Time) []Event {
	var events []Event

	prevPositions := map[string]bool{}
	prevVaults := map[string]bool{}
	prevOrders := map[int64]bool{}
	if previous != nil {
		for _, p := range previous.Positions {
			prevPositions[p.Coin] = true
		}
		for _, v := range previous.Vaults {
			prevVaults[v.VaultAddress] = true
		}
		for _, o := range previous.OpenOrders {
			prevOrders[o.OrderID] = true
		}
	}

	currPositions := map[string]bool{}
	for i := range current.Positions {
		p := &current.Positions[i]
		currPositions[p.Coin] = true
		if !prevPositions[p.Coin] {
			events = append(events, Event{
				Type: PositionOpened, At: at,
				Coin: p.Coin, Position: p,
			})
		}
	}

	currVaults := map[string]bool{}
	for i := range current.Vaults {
		v := &current.Vaults[i]
		currVaults[v.VaultAddress] = true
		if !prevVaults[v.VaultAddress] {
			events = append(events, Event{
				Type: VaultDeposited, At: at,
				VaultAddress: v.VaultAddress, Vault: v,
			})
		}
	}

	currOrders := map[int64]bool{}
	for i := range current.OpenOrders {
		o := &current.OpenOrders[i]
		currOrders[o.OrderID] = true
		if !prevOrders[o.OrderID] {
			events = append(events, Event{
				Type: OrderPlaced, At: at,
				Coin: o.Coin, OrderID: o.OrderID, Order: o,
			})
		}
	}

	if previous != nil {
		for _, p := range previous.Positions {
			if !currPositions[p.Coin] {
				events = append(events, Event{Type: PositionClosed, At: at, Coin: p.Coin})
			}
		}
		for _, v := range previous.Vaults {
			if !currVaults[v.VaultAddress] {
				events = append(events, Event{Type: VaultWithdrawn, At: at, VaultAddress: v.VaultAddress})
			}
		}
		for _, o := range previous.OpenOrders {
			if !currOrders[o.OrderID] {
				events = append(events, Event{Type: OrderRemoved, At: at, Coin: o.Coin, OrderID: o.OrderID})
			}
		}
	}

	return events
}
