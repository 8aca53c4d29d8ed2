// README: Shared value objects (IDs, coordinates).
package types

type ID string

type Point struct {
	Lat float64
	Lng float64
}
