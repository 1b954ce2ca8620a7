package error

import (
	"errors"
	"fmt"
)

var (
	ErrProtocolViolation = errors.New("protocol violation")
	ErrLivenessFailure   = errors.New("liveness failure")
	ErrCellAlreadyShot   = errors.New("cell already shot")
	ErrOutOfGridBound    = errors.New("coordinate out of grid bound")
)

func ErrXorYOutOfGridBound(x, y int) error {
	return fmt.Errorf("incoming x or y is out of game grid bound\tx: %d\ty: %d: %w", x, y, ErrOutOfGridBound)
}

func ErrAttackPositionAlreadyShot(x, y int) error {
	return fmt.Errorf("this position is already shot in previous rounds\tx: %d\ty: %d: %w", x, y, ErrCellAlreadyShot)
}

func ErrInvalidShipSpan(x1, y1, x2, y2 int) error {
	return fmt.Errorf("ship must be horizontal or vertical\tstart: (%d,%d)\tend: (%d,%d)", x1, y1, x2, y2)
}

func ErrShotDeltaCount(count int) error {
	return fmt.Errorf("shot grid must differ in exactly one cell, got %d: %w", count, ErrProtocolViolation)
}

func ErrNotPlayerTurn(player int) error {
	return fmt.Errorf("player %d does not hold the turn: %w", player, ErrProtocolViolation)
}

func ErrWrongPhase(want, got string) error {
	return fmt.Errorf("game is in phase %s, operation requires %s: %w", got, want, ErrProtocolViolation)
}

func ErrFleetMismatch(player int) error {
	return fmt.Errorf("confirmed fleet of player %d does not match the placed fleet: %w", player, ErrProtocolViolation)
}

func ErrAlreadyConfirmed(player int) error {
	return fmt.Errorf("player %d already confirmed the fleet: %w", player, ErrProtocolViolation)
}

func ErrUnexpectedGridFlags(flags uint8) error {
	return fmt.Errorf("unexpected grid flags 0x%02x: %w", flags, ErrProtocolViolation)
}

func ErrClientUnresponsive(userId uint16) error {
	return fmt.Errorf("client %d did not answer the liveness probe: %w", userId, ErrLivenessFailure)
}

func ErrSessionNotFound(sessionId string) error {
	return fmt.Errorf("session with this id does not exist, id: %s", sessionId)
}

func ErrInvalidStage(stage string) error {
	return fmt.Errorf("invalid type of development stage: %s", stage)
}
