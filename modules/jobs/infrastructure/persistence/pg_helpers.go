package persistence

import "strconv"

type rowScanner interface {
	Scan(dest ...any) error
}

func itoa(n int) string { return strconv.Itoa(n) }
