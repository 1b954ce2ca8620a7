package battleship

import "fmt"

type Player uint8

const (
	PlayerOne Player = iota
	PlayerTwo
)

var Players = [2]Player{PlayerOne, PlayerTwo}

func (p Player) Opponent() Player {
	if p == PlayerOne {
		return PlayerTwo
	}
	return PlayerOne
}

func (p Player) Valid() bool {
	return p == PlayerOne || p == PlayerTwo
}

func (p Player) String() string {
	switch p {
	case PlayerOne:
		return "player one"
	case PlayerTwo:
		return "player two"
	default:
		return fmt.Sprintf("player(%d)", uint8(p))
	}
}

// Player one owns the high nibble of every cell, player two the low one.
func (p Player) shift() uint {
	if p == PlayerOne {
		return 4
	}
	return 0
}
