package reliability

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marketmind/marketmind/internal/database"
)

// Maintenance runs periodic SQLite upkeep over the application databases.
type Maintenance struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

func NewMaintenance(databases map[string]*database.DB, log zerolog.Logger) *Maintenance {
	return &Maintenance{
		databases: databases,
		log:       log.With().Str("component", "maintenance").Logger(),
	}
}

// Checkpoint truncates the WAL of every database. Run before a backup so
// the .db files on disk are complete.
func (m *Maintenance) Checkpoint() {
	for name, db := range m.databases {
		if _, err := db.Conn().Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			m.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}
}

// Vacuum rebuilds and re-analyzes every database. Intended for a weekly
// low-traffic slot; VACUUM takes an exclusive lock.
func (m *Maintenance) Vacuum() error {
	for name, db := range m.databases {
		m.log.Info().Str("database", name).Msg("Vacuuming database")

		if _, err := db.Conn().Exec("VACUUM"); err != nil {
			return fmt.Errorf("failed to vacuum %s: %w", name, err)
		}
		if _, err := db.Conn().Exec("ANALYZE"); err != nil {
			m.log.Warn().Err(err).Str("database", name).Msg("ANALYZE failed")
		}
	}
	return nil
}
