// Package world holds the types the scheduler shares with the external
// world collaborator: entity identities, the per-tick snapshot contract and
// the set difference used for change detection.
//
// Nothing here knows about game rules. A snapshot only has to enumerate the
// entities that are live this tick and report the game clock.
package world
