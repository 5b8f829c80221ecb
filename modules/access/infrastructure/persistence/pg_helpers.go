package persistence

type rowScanner interface {
	Scan(dest ...any) error
}
