// Package triggers holds the built-in content triggers.
package triggers

import (
	"github.com/nathoo/tilecore/engine/trigger"
	"github.com/nathoo/tilecore/types"
)

// HouseSwitch is the name content binds to the switch in the house.
const HouseSwitch = "house_switch"

// House switch content.
const (
	DoorGuard      = "unlocked_the_door"
	DoorX, DoorY   = 4, 0
	DoorDepth      = -0.2
	OpenDoorType   = 66
	DoorSound      = "sounds/door.oga"
	SecretRoomPath = "areas/secret_room.tmx"
)

// SecretRoomExit is where the opened door leads.
var SecretRoomExit = types.ExitLink{Area: SecretRoomPath, X: 4, Y: 5, Orientation: 0.0}

// Register binds every built-in trigger.
func Register(reg *trigger.Registry) error {
	return reg.Register(HouseSwitch, UnlockDoor)
}

// UnlockDoor opens the secret door in the north wall once per save. The
// gameplay tile and the door graphic are changed in the same step.
func UnlockDoor(c *trigger.Context) error {
	save := c.Save()
	if save.Bool(DoorGuard) {
		return nil
	}
	if err := save.SetBool(DoorGuard, true); err != nil {
		return err
	}

	a := c.Area()
	wall, err := a.Tiles(DoorX, DoorY, types.PropertyDepth)
	if err != nil {
		return err
	}
	if err := wall.SetExit(SecretRoomExit); err != nil {
		return err
	}
	if err := wall.SetFlag(types.FlagNowalk, false); err != nil {
		return err
	}

	door, err := a.Tiles(DoorX, DoorY, DoorDepth)
	if err != nil {
		return err
	}
	open, err := a.GetTileType(OpenDoorType)
	if err != nil {
		return err
	}
	if err := door.SetType(open); err != nil {
		return err
	}

	a.RequestRedraw()
	c.PlaySound(DoorSound)
	return nil
}
