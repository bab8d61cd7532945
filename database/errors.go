package database

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrCampaignClosed    = errors.New("campaign is not open")
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrParticipationConflict rejects a repeat join whose tier or unit
	// price differs from the participation already committed.
	ErrParticipationConflict = errors.New("existing participation has different terms")
)

const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the package sentinels and wraps the rest.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return errors.Wrap(err, msg)
}
