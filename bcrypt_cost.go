//go:build !race

package softdelete

func passwordHashCost() int {
	return 12
}
