// Package store persists the agent's durable state: the psychological
// snapshot, open positions, the trailing trade ledger, and the tracked
// token list.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tokenmind/agent/internal/mind"
	"github.com/tokenmind/agent/internal/trade"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_state (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	snapshot_json TEXT NOT NULL,
	capital       REAL NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS token_convictions (
	token_address TEXT PRIMARY KEY,
	score         REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	token_address TEXT PRIMARY KEY,
	position_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_ledger (
	id          TEXT PRIMARY KEY,
	result_json TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tracked_tokens (
	token_address TEXT PRIMARY KEY
);
`

// stateRecord is the portable JSON shape of the psychological snapshot.
// Token convictions live in their own key/value table, not in this blob.
type stateRecord struct {
	Confidence         float64   `json:"confidence"`
	Suspicion          float64   `json:"suspicion"`
	Conviction         float64   `json:"conviction"`
	Fatigue            float64   `json:"fatigue"`
	Aggression         float64   `json:"aggression"`
	Regret             float64   `json:"regret"`
	PrimaryMood        string    `json:"primary_mood"`
	SecondaryMood      string    `json:"secondary_mood,omitempty"`
	RiskAppetite       float64   `json:"risk_appetite"`
	Mode               string    `json:"mode"`
	WinStreak          int       `json:"win_streak"`
	LossStreak         int       `json:"loss_streak"`
	LastTradeAt        time.Time `json:"last_trade_at"`
	DaysSinceLastTrade float64   `json:"days_since_last_trade"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens the database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot atomically replaces the persisted agent state, positions,
// convictions, and tracked token list.
func (s *Store) SaveSnapshot(state mind.State, capital float64, positions []trade.Position, tracked []string) error {
	snapJSON, err := json.Marshal(toRecord(state))
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec(
		`INSERT INTO agent_state (id, snapshot_json, capital, updated_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET snapshot_json = excluded.snapshot_json,
		 capital = excluded.capital, updated_at = excluded.updated_at`,
		string(snapJSON), capital, now,
	)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM token_convictions`); err != nil {
		return fmt.Errorf("clear convictions: %w", err)
	}
	for token, score := range state.TokenConvictions {
		if _, err := tx.Exec(
			`INSERT INTO token_convictions (token_address, score) VALUES (?, ?)`, token, score,
		); err != nil {
			return fmt.Errorf("insert conviction: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	for _, pos := range positions {
		posJSON, err := json.Marshal(pos)
		if err != nil {
			return fmt.Errorf("marshal position: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO positions (token_address, position_json) VALUES (?, ?)`,
			pos.TokenAddress, string(posJSON),
		); err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM tracked_tokens`); err != nil {
		return fmt.Errorf("clear tracked tokens: %w", err)
	}
	for _, token := range tracked {
		if _, err := tx.Exec(
			`INSERT INTO tracked_tokens (token_address) VALUES (?)`, token,
		); err != nil {
			return fmt.Errorf("insert tracked token: %w", err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the persisted agent state back. found is false when
// nothing was ever saved.
func (s *Store) LoadSnapshot() (state mind.State, capital float64, positions []trade.Position, tracked []string, found bool, err error) {
	var snapJSON string
	row := s.db.QueryRow(`SELECT snapshot_json, capital FROM agent_state WHERE id = 1`)
	if scanErr := row.Scan(&snapJSON, &capital); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return mind.State{}, 0, nil, nil, false, nil
		}
		return mind.State{}, 0, nil, nil, false, fmt.Errorf("read state: %w", scanErr)
	}

	var rec stateRecord
	if err := json.Unmarshal([]byte(snapJSON), &rec); err != nil {
		return mind.State{}, 0, nil, nil, false, fmt.Errorf("unmarshal state: %w", err)
	}
	state = fromRecord(rec)

	state.TokenConvictions = make(mind.Convictions)
	rows, err := s.db.Query(`SELECT token_address, score FROM token_convictions`)
	if err != nil {
		return mind.State{}, 0, nil, nil, false, fmt.Errorf("read convictions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var token string
		var score float64
		if err := rows.Scan(&token, &score); err != nil {
			return mind.State{}, 0, nil, nil, false, fmt.Errorf("scan conviction: %w", err)
		}
		state.TokenConvictions[token] = score
	}
	if err := rows.Err(); err != nil {
		return mind.State{}, 0, nil, nil, false, fmt.Errorf("convictions rows: %w", err)
	}

	positions, err = s.loadPositions()
	if err != nil {
		return mind.State{}, 0, nil, nil, false, err
	}

	tracked, err = s.loadTracked()
	if err != nil {
		return mind.State{}, 0, nil, nil, false, err
	}

	return state, capital, positions, tracked, true, nil
}

// AppendTrade adds one result to the trailing trade ledger.
func (s *Store) AppendTrade(res trade.Result) error {
	resJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO trade_ledger (id, result_json, created_at) VALUES (?, ?, ?)`,
		res.ID, string(resJSON), res.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecentTrades returns the most recent ledger entries, newest first.
func (s *Store) RecentTrades(limit int) ([]trade.Result, error) {
	rows, err := s.db.Query(
		`SELECT result_json FROM trade_ledger ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []trade.Result
	for rows.Next() {
		var resJSON string
		if err := rows.Scan(&resJSON); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		var res trade.Result
		if err := json.Unmarshal([]byte(resJSON), &res); err != nil {
			return nil, fmt.Errorf("unmarshal trade: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// loadPositions reads all persisted positions.
func (s *Store) loadPositions() ([]trade.Position, error) {
	rows, err := s.db.Query(`SELECT position_json FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	defer rows.Close()

	var out []trade.Position
	for rows.Next() {
		var posJSON string
		if err := rows.Scan(&posJSON); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		var pos trade.Position
		if err := json.Unmarshal([]byte(posJSON), &pos); err != nil {
			return nil, fmt.Errorf("unmarshal position: %w", err)
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

// loadTracked reads the tracked token list.
func (s *Store) loadTracked() ([]string, error) {
	rows, err := s.db.Query(`SELECT token_address FROM tracked_tokens`)
	if err != nil {
		return nil, fmt.Errorf("read tracked tokens: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan tracked token: %w", err)
		}
		out = append(out, token)
	}
	return out, rows.Err()
}

// toRecord converts a snapshot to its portable JSON shape.
func toRecord(s mind.State) stateRecord {
	return stateRecord{
		Confidence:         s.Confidence,
		Suspicion:          s.Suspicion,
		Conviction:         s.Conviction,
		Fatigue:            s.Fatigue,
		Aggression:         s.Aggression,
		Regret:             s.Regret,
		PrimaryMood:        string(s.PrimaryMood),
		SecondaryMood:      string(s.SecondaryMood),
		RiskAppetite:       s.RiskAppetite,
		Mode:               string(s.Mode),
		WinStreak:          s.WinStreak,
		LossStreak:         s.LossStreak,
		LastTradeAt:        s.LastTradeAt,
		DaysSinceLastTrade: s.DaysSinceLastTrade,
	}
}

// fromRecord converts the JSON shape back to a snapshot (convictions are
// filled in separately).
func fromRecord(rec stateRecord) mind.State {
	return mind.State{
		Confidence:         rec.Confidence,
		Suspicion:          rec.Suspicion,
		Conviction:         rec.Conviction,
		Fatigue:            rec.Fatigue,
		Aggression:         rec.Aggression,
		Regret:             rec.Regret,
		PrimaryMood:        mind.Mood(rec.PrimaryMood),
		SecondaryMood:      mind.Mood(rec.SecondaryMood),
		RiskAppetite:       rec.RiskAppetite,
		Mode:               mind.Mode(rec.Mode),
		WinStreak:          rec.WinStreak,
		LossStreak:         rec.LossStreak,
		LastTradeAt:        rec.LastTradeAt,
		DaysSinceLastTrade: rec.DaysSinceLastTrade,
	}
}
