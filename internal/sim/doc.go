// Package sim is a scripted stand-in for a game engine. It replays a
// scenario file tick by tick and exposes each tick as a world.Snapshot with
// stockpiles, which is enough to drive the scheduler without a live game.
package sim
